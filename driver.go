package fat32

import (
	"math"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/usbfat/fat32/checkpoint"
)

// Driver mounts one FAT32 partition of a BlockDevice and offers navigation, reading and creation
// of files. A Driver is not safe for concurrent use.
type Driver struct {
	dev BlockDevice
	log logrus.FieldLogger

	mounted        bool
	partitionIndex int
	partition      Partition
	rr             ReservedRegion
	engine         *clusterEngine
	path           Path
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger of the driver. Default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// NewDriver returns an unmounted driver working on dev.
func NewDriver(dev BlockDevice, opts ...Option) *Driver {
	d := &Driver{
		dev: dev,
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// VolumeInfo describes the geometry of the mounted partition.
type VolumeInfo struct {
	PartitionIndex int
	Partition      Partition
	ReservedRegion ReservedRegion
	ClusterSize    int
	ClusterCount   uint32
	FATStart       uint32
	FirstDataLBA   uint32
}

// Mount mounts the partition with the given index of the MBR partition table. A medium without
// partition table holds a single volume with index 0. On failure the driver stays unmounted.
func (d *Driver) Mount(partitionIndex int) error {
	if d.mounted {
		d.log.WithField("partition", d.partitionIndex).Info("remounting")
		d.reset()
	}

	if err := d.dev.UnitReady(); err != nil {
		return checkpoint.Wrap(err, ErrTransport)
	}

	sector0, err := d.dev.ReadSectors(0, 1)
	if err != nil {
		return checkpoint.Wrap(err, ErrTransport)
	}

	part, err := d.selectPartition(sector0, partitionIndex)
	if err != nil {
		return err
	}

	bootSector := sector0
	if part.LBAStart != 0 {
		bootSector, err = d.dev.ReadSectors(part.LBAStart, 1)
		if err != nil {
			return checkpoint.Wrap(err, ErrTransport)
		}
	}

	rr, err := ParseReservedRegion(bootSector)
	if err != nil {
		return err
	}
	if int(rr.BytesPerSector) != d.dev.SectorSize() {
		return checkpoint.Errorf(ErrDecode, "volume uses %d byte sectors, device %d", rr.BytesPerSector, d.dev.SectorSize())
	}

	engine := &clusterEngine{
		dev:          d.dev,
		rr:           rr,
		partitionLBA: part.LBAStart,
		log:          d.log,
	}
	entries, free, err := loadDirectory(engine, rr.RootCluster)
	if err != nil {
		return err
	}

	d.mounted = true
	d.partitionIndex = partitionIndex
	d.partition = part
	d.rr = rr
	d.engine = engine
	d.path = Path{}
	d.path.SetContent(entries, free)

	if err := d.dev.SetRemovalAllowed(false); err != nil {
		d.log.WithError(err).Warn("could not prevent medium removal")
	}

	d.log.WithFields(logrus.Fields{
		"partition": partitionIndex,
		"lba":       part.LBAStart,
		"label":     rr.VolumeLabel,
	}).Info("mounted")
	return nil
}

func (d *Driver) selectPartition(sector0 []byte, index int) (Partition, error) {
	if isFAT32BootSector(sector0) {
		if index != 0 {
			return Partition{}, checkpoint.Errorf(ErrNotFound, "partition %d on a medium without partition table", index)
		}
		d.log.Debug("no partition table, using the whole medium")
		return Partition{LBAStart: 0, Type: 0x0C}, nil
	}

	mbr, err := ParseMBR(sector0)
	if err != nil {
		return Partition{}, err
	}
	if !mbr.Valid() {
		d.log.WithField("signature", mbr.Signature).Warn("boot signature missing")
	}
	if index < 0 || index >= len(mbr.Partitions) || !mbr.Partitions[index].Used() {
		return Partition{}, checkpoint.Errorf(ErrNotFound, "partition %d", index)
	}

	part := mbr.Partitions[index]
	if !part.IsFAT32() {
		d.log.WithField("type", part.Type).Warn("partition type is not FAT32")
	}
	return part, nil
}

// Unmount allows medium removal again and resets the driver, even if the command failed.
func (d *Driver) Unmount() error {
	if !d.mounted {
		return checkpoint.From(ErrNotMounted)
	}
	err := d.dev.SetRemovalAllowed(true)
	d.reset()
	d.log.Info("unmounted")
	return checkpoint.Wrap(err, ErrTransport)
}

func (d *Driver) reset() {
	d.mounted = false
	d.partitionIndex = 0
	d.partition = Partition{}
	d.rr = ReservedRegion{}
	d.engine = nil
	d.path = Path{}
}

// Mounted reports whether a partition is mounted.
func (d *Driver) Mounted() bool {
	return d.mounted
}

// Info returns the geometry of the mounted volume.
func (d *Driver) Info() (VolumeInfo, error) {
	if !d.mounted {
		return VolumeInfo{}, checkpoint.From(ErrNotMounted)
	}
	return VolumeInfo{
		PartitionIndex: d.partitionIndex,
		Partition:      d.partition,
		ReservedRegion: d.rr,
		ClusterSize:    d.rr.ClusterSize(),
		ClusterCount:   d.rr.ClusterCount(),
		FATStart:       d.engine.fatStart(),
		FirstDataLBA:   d.engine.firstDataLBA(),
	}, nil
}

// List returns the entries of the current directory.
func (d *Driver) List() ([]FileEntry, error) {
	if !d.mounted {
		return nil, checkpoint.From(ErrNotMounted)
	}
	return append([]FileEntry(nil), d.path.Content()...), nil
}

// Path returns the current directory in slash notation.
func (d *Driver) Path() string {
	return d.path.String()
}

// Breadcrumb returns the directories entered from the root.
func (d *Driver) Breadcrumb() []FileEntry {
	return d.path.Breadcrumb()
}

// ChangeDirectory enters the sub directory called name, compared case-insensitively.
// "." stays in the current directory and ".." is the same as ChangeDirectoryBack.
func (d *Driver) ChangeDirectory(name string) error {
	if !d.mounted {
		return checkpoint.From(ErrNotMounted)
	}
	switch name {
	case ".":
		return nil
	case "..":
		return d.ChangeDirectoryBack()
	}

	dir, ok := find(d.path.Content(), name, true)
	if !ok {
		return checkpoint.Errorf(ErrNotFound, "directory %q", name)
	}
	entries, free, err := loadDirectory(d.engine, dir.FirstCluster)
	if err != nil {
		return err
	}

	d.path.Enter(dir)
	d.path.SetContent(entries, free)
	return nil
}

// ChangeDirectoryBack returns to the parent directory. At the root it fails with ErrAtRoot.
func (d *Driver) ChangeDirectoryBack() error {
	if !d.mounted {
		return checkpoint.From(ErrNotMounted)
	}
	crumbs := d.path.Breadcrumb()
	if len(crumbs) == 0 {
		return checkpoint.From(ErrAtRoot)
	}

	parent := d.rr.RootCluster
	if len(crumbs) > 1 {
		parent = crumbs[len(crumbs)-2].FirstCluster
	}
	entries, free, err := loadDirectory(d.engine, parent)
	if err != nil {
		return err
	}

	d.path.Leave()
	d.path.SetContent(entries, free)
	return nil
}

// ReadFile returns the content of the file called name in the current directory.
func (d *Driver) ReadFile(name string) ([]byte, error) {
	if !d.mounted {
		return nil, checkpoint.From(ErrNotMounted)
	}
	entry, ok := find(d.path.Content(), name, false)
	if !ok {
		return nil, checkpoint.Errorf(ErrNotFound, "file %q", name)
	}
	return d.readEntry(entry)
}

func (d *Driver) readEntry(entry FileEntry) ([]byte, error) {
	if entry.Size == 0 {
		return []byte{}, nil
	}

	chain, err := d.engine.walk(entry.FirstCluster)
	if err != nil {
		return nil, err
	}
	clusterSize := d.rr.ClusterSize()
	needed := (int(entry.Size) + clusterSize - 1) / clusterSize
	if len(chain) < needed {
		return nil, checkpoint.Errorf(ErrDecode, "%q has %d bytes but only %d clusters", entry.Name(), entry.Size, len(chain))
	}

	data, err := d.engine.readChain(chain[:needed])
	if err != nil {
		return nil, err
	}
	return data[:entry.Size], nil
}

// WriteNewFile creates a new file, or an empty directory if isDirectory is set, in the current
// directory. Existing entries cannot be replaced.
func (d *Driver) WriteNewFile(name string, data []byte, readOnly, hidden, isDirectory bool, modified time.Time) error {
	if !d.mounted {
		return checkpoint.From(ErrNotMounted)
	}

	dirCluster := d.rr.RootCluster
	parentCluster := uint32(0)
	if current, ok := d.path.Current(); ok {
		dirCluster = current.FirstCluster
		parentCluster = dirCluster
	}

	// The cached listing rejects a full directory without touching the device.
	if slots, err := SlotsFor(name, d.path.Content()); err == nil && slots > d.path.FreeSlots() {
		if _, exists := findAny(d.path.Content(), name); !exists {
			return checkpoint.Errorf(ErrDirectoryFull, "%q needs %d entries, %d free", name, slots, d.path.FreeSlots())
		}
	}

	var attrs byte
	if readOnly {
		attrs |= AttrReadOnly
	}
	if hidden {
		attrs |= AttrHidden
	}

	entries, free, err := d.createEntry(dirCluster, parentCluster, name, data, attrs, isDirectory, modified)
	if err != nil {
		return err
	}
	d.path.SetContent(entries, free)
	return nil
}

// createEntry writes a new entry into the directory starting at dirCluster and returns the
// new content of that directory. parentCluster is stored in ".." if a directory is created.
func (d *Driver) createEntry(dirCluster, parentCluster uint32, name string, data []byte, attrs byte, isDirectory bool, modified time.Time) ([]FileEntry, int, error) {
	if err := validLongName(name); err != nil {
		return nil, 0, err
	}
	if isDirectory && len(data) > 0 {
		return nil, 0, checkpoint.Errorf(ErrUnsupported, "directory %q cannot have content", name)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, 0, checkpoint.Errorf(ErrUnsupported, "%d bytes exceed the FAT32 file size limit", len(data))
	}

	dirChain, err := d.engine.walk(dirCluster)
	if err != nil {
		return nil, 0, err
	}
	dirRaw, err := d.engine.readChain(dirChain)
	if err != nil {
		return nil, 0, err
	}
	existing, free, err := DecodeDirectory(dirRaw)
	if err != nil {
		return nil, 0, err
	}

	if _, ok := findAny(existing, name); ok {
		return nil, 0, checkpoint.Errorf(ErrExist, "%q", name)
	}
	slots, err := SlotsFor(name, existing)
	if err != nil {
		return nil, 0, err
	}
	if slots > free {
		return nil, 0, checkpoint.Errorf(ErrDirectoryFull, "%q needs %d entries, %d free", name, slots, free)
	}

	clusterSize := d.rr.ClusterSize()
	clusters := (len(data) + clusterSize - 1) / clusterSize
	if isDirectory {
		attrs |= AttrDirectory
		clusters = 1
	} else {
		attrs |= AttrArchive
	}

	// The directory is only touched once the data chain is allocated and written.
	chain, err := d.engine.allocate(clusters)
	if err != nil {
		return nil, 0, err
	}
	abort := func(err error) ([]FileEntry, int, error) {
		if len(chain) > 0 {
			_ = d.engine.release(chain)
		}
		return nil, 0, err
	}

	var first uint32
	if len(chain) > 0 {
		first = chain[0]
	}
	size := uint32(len(data))
	if isDirectory {
		data = dotRecords(first, parentCluster, modified)
		size = 0
	}

	records, err := EncodeNewEntry(name, first, size, attrs, modified, existing)
	if err != nil {
		return abort(err)
	}
	if len(chain) > 0 {
		if err := d.engine.writeChain(chain, data); err != nil {
			return abort(err)
		}
	}

	offset := len(dirRaw) - free*entrySize
	copy(dirRaw[offset:], records)

	from := offset / clusterSize
	to := (offset + len(records) - 1) / clusterSize
	if err := d.engine.writeChain(dirChain[from:to+1], dirRaw[from*clusterSize:(to+1)*clusterSize]); err != nil {
		return abort(err)
	}

	d.log.WithFields(logrus.Fields{
		"name":     name,
		"cluster":  first,
		"clusters": len(chain),
		"bytes":    len(data),
	}).Debug("created entry")

	entries, free, err := DecodeDirectory(dirRaw)
	if err != nil {
		return nil, 0, err
	}
	return entries, free, nil
}

// Stat returns the entry at the slash separated path p, relative to the root directory.
func (d *Driver) Stat(p string) (FileEntry, error) {
	entry, root, err := d.resolve(p)
	if err != nil {
		return FileEntry{}, err
	}
	if root {
		return FileEntry{ShortName: "/", IsDirectory: true, FirstCluster: d.rr.RootCluster}, nil
	}
	return entry, nil
}

// ReadDirPath lists the directory at path p, without "." and ".." and the volume label.
func (d *Driver) ReadDirPath(p string) ([]FileEntry, error) {
	entry, err := d.Stat(p)
	if err != nil {
		return nil, err
	}
	if !entry.IsDirectory {
		return nil, checkpoint.Errorf(ErrNotFound, "%q is no directory", p)
	}
	entries, _, err := loadDirectory(d.engine, entry.FirstCluster)
	if err != nil {
		return nil, err
	}

	result := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsVolumeLabel || e.ShortName == "." || e.ShortName == ".." {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// ReadFilePath returns the content of the file at path p.
func (d *Driver) ReadFilePath(p string) ([]byte, error) {
	entry, err := d.Stat(p)
	if err != nil {
		return nil, err
	}
	if entry.IsDirectory {
		return nil, checkpoint.Errorf(ErrNotFound, "%q is a directory", p)
	}
	return d.readEntry(entry)
}

// CreatePath creates a new file or empty directory at path p. The parent directory must exist.
func (d *Driver) CreatePath(p string, data []byte, attrs byte, isDirectory bool, modified time.Time) error {
	dirPath, name := path.Split(cleanPath(p))
	if name == "" {
		return checkpoint.Errorf(ErrExist, "%q", p)
	}
	parent, err := d.Stat(dirPath)
	if err != nil {
		return err
	}
	if !parent.IsDirectory {
		return checkpoint.Errorf(ErrNotFound, "%q is no directory", dirPath)
	}

	// ".." of a directory created in the root points to cluster 0.
	parentCluster := parent.FirstCluster
	if parentCluster == d.rr.RootCluster {
		parentCluster = 0
	}

	entries, free, err := d.createEntry(parent.FirstCluster, parentCluster, name, data, attrs&(AttrReadOnly|AttrHidden), isDirectory, modified)
	if err != nil {
		return err
	}

	current := d.rr.RootCluster
	if e, ok := d.path.Current(); ok {
		current = e.FirstCluster
	}
	if current == parent.FirstCluster {
		d.path.SetContent(entries, free)
	}
	return nil
}

// resolve walks p from the root directory. root is true if p denotes the root itself.
func (d *Driver) resolve(p string) (entry FileEntry, root bool, err error) {
	if !d.mounted {
		return FileEntry{}, false, checkpoint.From(ErrNotMounted)
	}

	clean := cleanPath(p)
	if clean == "/" {
		return FileEntry{}, true, nil
	}

	cluster := d.rr.RootCluster
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	for i, part := range parts {
		entries, _, err := loadDirectory(d.engine, cluster)
		if err != nil {
			return FileEntry{}, false, err
		}
		found, ok := findAny(entries, part)
		if !ok {
			return FileEntry{}, false, checkpoint.Errorf(ErrNotFound, "%q", p)
		}
		if i < len(parts)-1 && !found.IsDirectory {
			return FileEntry{}, false, checkpoint.Errorf(ErrNotFound, "%q is no directory", part)
		}
		entry, cluster = found, found.FirstCluster
	}
	return entry, false, nil
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// loadDirectory reads and decodes the directory starting at cluster.
func loadDirectory(engine *clusterEngine, cluster uint32) ([]FileEntry, int, error) {
	chain, err := engine.walk(cluster)
	if err != nil {
		return nil, 0, err
	}
	raw, err := engine.readChain(chain)
	if err != nil {
		return nil, 0, err
	}
	return DecodeDirectory(raw)
}

// find returns the first entry matching name which is a directory if dir is set, else a file.
func find(entries []FileEntry, name string, dir bool) (FileEntry, bool) {
	for _, e := range entries {
		if e.IsVolumeLabel || e.IsDirectory != dir {
			continue
		}
		if e.matches(name) {
			return e, true
		}
	}
	return FileEntry{}, false
}

func findAny(entries []FileEntry, name string) (FileEntry, bool) {
	for _, e := range entries {
		if !e.IsVolumeLabel && e.matches(name) {
			return e, true
		}
	}
	return FileEntry{}, false
}
