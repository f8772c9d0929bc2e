// Package fixture builds FAT32 volumes byte by byte. It deliberately does not use the fat32
// package, so images built here can be used to check its decoders and encoders.
package fixture

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"

	"github.com/spf13/afero"
)

const (
	entrySize = 32
	eoc       = 0x0FFFFFFF

	// Attributes used by the fixtures.
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

// Volume describes the geometry of a FAT32 volume.
type Volume struct {
	// PartitionLBA is the first sector of the partition. 0 builds a medium without partition table.
	PartitionLBA      uint32
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCopies         uint8
	SectorsPerFAT     uint32
	// Clusters is the number of data clusters.
	Clusters uint32
	Label    string
}

// ClusterSize returns the size of a cluster in bytes.
func (v Volume) ClusterSize() int {
	return int(v.SectorsPerCluster) * int(v.BytesPerSector)
}

// TotalSectors returns the sector count of the partition.
func (v Volume) TotalSectors() uint32 {
	return uint32(v.ReservedSectors) + uint32(v.FATCopies)*v.SectorsPerFAT + v.Clusters*uint32(v.SectorsPerCluster)
}

// FATStart returns the absolute LBA of the first FAT.
func (v Volume) FATStart() uint32 {
	return v.PartitionLBA + uint32(v.ReservedSectors)
}

// FirstDataLBA returns the absolute LBA of cluster 2.
func (v Volume) FirstDataLBA() uint32 {
	return v.FATStart() + uint32(v.FATCopies)*v.SectorsPerFAT
}

// ClusterLBA returns the absolute LBA of cluster c.
func (v Volume) ClusterLBA(c uint32) uint32 {
	return v.FirstDataLBA() + (c-2)*uint32(v.SectorsPerCluster)
}

// Builder writes a volume into an in-memory image.
type Builder struct {
	Volume Volume
	img    []byte
	next   uint32
	used   map[uint32]int
}

// New formats an empty volume with the root directory in cluster 2.
func New(v Volume) *Builder {
	size := (int(v.PartitionLBA) + int(v.TotalSectors())) * int(v.BytesPerSector)
	b := &Builder{
		Volume: v,
		img:    make([]byte, size),
		next:   3,
		used:   map[uint32]int{},
	}

	if v.PartitionLBA != 0 {
		b.writeMBR()
	}
	b.writeBootSector()

	b.SetFAT(0, 0x0FFFFFF8)
	b.SetFAT(1, 0x0FFFFFFF)
	b.SetFAT(2, eoc)
	return b
}

func (b *Builder) writeMBR() {
	mbr := b.img[:512]
	pte := mbr[446:]
	pte[0] = 0x00
	pte[4] = 0x0C
	binary.LittleEndian.PutUint32(pte[8:], b.Volume.PartitionLBA)
	binary.LittleEndian.PutUint32(pte[12:], b.Volume.TotalSectors())
	binary.LittleEndian.PutUint16(mbr[510:], 0xAA55)
}

func (b *Builder) writeBootSector() {
	v := b.Volume
	bs := b.Sector(v.PartitionLBA)
	copy(bs[0:], []byte{0xEB, 0x58, 0x90})
	copy(bs[3:], "MSWIN4.1")
	binary.LittleEndian.PutUint16(bs[11:], v.BytesPerSector)
	bs[13] = v.SectorsPerCluster
	binary.LittleEndian.PutUint16(bs[14:], v.ReservedSectors)
	bs[16] = v.FATCopies
	bs[21] = 0xF8
	binary.LittleEndian.PutUint32(bs[28:], v.PartitionLBA)
	binary.LittleEndian.PutUint32(bs[32:], v.TotalSectors())
	binary.LittleEndian.PutUint32(bs[36:], v.SectorsPerFAT)
	binary.LittleEndian.PutUint32(bs[44:], 2)
	binary.LittleEndian.PutUint16(bs[48:], 1)
	binary.LittleEndian.PutUint16(bs[50:], 6)
	bs[66] = 0x29
	label := v.Label
	if label == "" {
		label = "NO NAME"
	}
	copy(bs[71:82], pad(label, 11))
	copy(bs[82:90], "FAT32   ")
	binary.LittleEndian.PutUint16(bs[510:], 0xAA55)
}

func pad(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

// Bytes returns the image. It is not copied.
func (b *Builder) Bytes() []byte {
	return b.img
}

// Sector returns the bytes of sector lba of the image.
func (b *Builder) Sector(lba uint32) []byte {
	bps := int(b.Volume.BytesPerSector)
	return b.img[int(lba)*bps : (int(lba)+1)*bps]
}

// FAT returns a copy of the first FAT.
func (b *Builder) FAT() []byte {
	v := b.Volume
	start := int(v.FATStart()) * int(v.BytesPerSector)
	return append([]byte(nil), b.img[start:start+int(v.SectorsPerFAT)*int(v.BytesPerSector)]...)
}

// SetFAT writes value as entry of cluster c into every FAT copy.
func (b *Builder) SetFAT(c, value uint32) {
	v := b.Volume
	for k := uint32(0); k < uint32(v.FATCopies); k++ {
		off := int(v.FATStart()+k*v.SectorsPerFAT)*int(v.BytesPerSector) + int(c)*4
		binary.LittleEndian.PutUint32(b.img[off:], value)
	}
}

// Cluster returns the bytes of cluster c.
func (b *Builder) Cluster(c uint32) []byte {
	v := b.Volume
	start := int(v.ClusterLBA(c)) * int(v.BytesPerSector)
	return b.img[start : start+v.ClusterSize()]
}

// Chain reserves n consecutive clusters, links them and returns them.
func (b *Builder) Chain(n int) []uint32 {
	chain := make([]uint32, n)
	for i := range chain {
		chain[i] = b.next
		b.next++
	}
	for i, c := range chain {
		next := uint32(eoc)
		if i < n-1 {
			next = chain[i+1]
		}
		b.SetFAT(c, next)
	}
	return chain
}

// Fill marks all clusters from the next free one up to the last as used, leaving keep free.
func (b *Builder) Fill(keep int) {
	last := b.Volume.Clusters + 1
	for c := b.next; c+uint32(keep) <= last; c++ {
		b.SetFAT(c, eoc)
		b.next = c + 1
	}
}

// WriteData writes data over the clusters of chain.
func (b *Builder) WriteData(chain []uint32, data []byte) {
	size := b.Volume.ClusterSize()
	for i, c := range chain {
		if i*size >= len(data) {
			return
		}
		end := (i + 1) * size
		if end > len(data) {
			end = len(data)
		}
		copy(b.Cluster(c), data[i*size:end])
	}
}

// Entry is a raw 8.3 directory entry.
type Entry struct {
	// Name is the 11 byte short name, e.g. "README  TXT".
	Name       string
	Attr       byte
	NTReserved byte
	Cluster    uint32
	Size       uint32
	WriteTime  uint16
	WriteDate  uint16
}

func (e Entry) record() []byte {
	r := make([]byte, entrySize)
	copy(r[0:11], pad(e.Name, 11))
	r[11] = e.Attr
	r[12] = e.NTReserved
	binary.LittleEndian.PutUint16(r[20:], uint16(e.Cluster>>16))
	binary.LittleEndian.PutUint16(r[22:], e.WriteTime)
	binary.LittleEndian.PutUint16(r[24:], e.WriteDate)
	binary.LittleEndian.PutUint16(r[26:], uint16(e.Cluster))
	binary.LittleEndian.PutUint32(r[28:], e.Size)
	return r
}

// AddEntry appends e to the directory starting at cluster dir.
// Only the first cluster of a directory is used.
func (b *Builder) AddEntry(dir uint32, e Entry) {
	b.appendRecord(dir, e.record())
}

// AddLongEntry appends the long filename records of long followed by e.
func (b *Builder) AddLongEntry(dir uint32, long string, e Entry) {
	for _, r := range LongNameRecords(long, e.Name) {
		b.appendRecord(dir, r)
	}
	b.AddEntry(dir, e)
}

// AddRaw appends a raw 32 byte record.
func (b *Builder) AddRaw(dir uint32, record []byte) {
	b.appendRecord(dir, record)
}

func (b *Builder) appendRecord(dir uint32, record []byte) {
	slot := b.used[dir]
	copy(b.Cluster(dir)[slot*entrySize:], record)
	b.used[dir] = slot + 1
}

// LongNameRecords builds the long filename records of long, highest ordinal first.
func LongNameRecords(long, short string) [][]byte {
	units := utf16.Encode([]rune(long))
	count := (len(units) + 12) / 13
	sum := Checksum(pad(short, 11))

	offsets := []int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}
	records := make([][]byte, 0, count)
	for n := count; n >= 1; n-- {
		r := make([]byte, entrySize)
		r[0] = byte(n)
		if n == count {
			r[0] |= 0x40
		}
		r[11] = 0x0F
		r[13] = sum
		for i, off := range offsets {
			idx := (n-1)*13 + i
			var u uint16 = 0xFFFF
			switch {
			case idx < len(units):
				u = units[idx]
			case idx == len(units):
				u = 0
			}
			binary.LittleEndian.PutUint16(r[off:], u)
		}
		records = append(records, r)
	}
	return records
}

// Checksum computes the short name checksum of the 11 byte name.
func Checksum(short string) byte {
	var sum byte
	for i := 0; i < 11; i++ {
		sum = (sum&1)<<7 + sum>>1 + short[i]
	}
	return sum
}

// WriteTo stores the image as name in fs.
func (b *Builder) WriteTo(fs afero.Fs, name string) error {
	return afero.WriteFile(fs, name, b.img, 0644)
}
