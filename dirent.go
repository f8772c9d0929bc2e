package fat32

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/usbfat/fat32/checkpoint"
	"golang.org/x/text/encoding/unicode"
)

// FileEntry is one logical directory item, built from a normal directory record and the long
// filename records preceding it.
type FileEntry struct {
	ShortName string
	LongName  string

	IsDirectory   bool
	IsReadOnly    bool
	IsHidden      bool
	IsSystem      bool
	IsVolumeLabel bool

	FirstCluster uint32
	Size         uint32
	LastModified time.Time
}

// Name returns the long name if there is one, else the short name.
func (e FileEntry) Name() string {
	if e.LongName != "" {
		return e.LongName
	}
	return e.ShortName
}

// matches compares name case-insensitively with the display name of the entry.
func (e FileEntry) matches(name string) bool {
	return strings.EqualFold(e.Name(), name) || strings.EqualFold(e.ShortName, name)
}

// lfnUnitOffsets are the byte offsets of the 13 UTF-16 code units of a long filename record.
var lfnUnitOffsets = [lfnCharsPerEntry]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func isLongNameRecord(attr byte) bool {
	switch attr {
	case 0x0F, 0x1F, 0x2F, 0x3F:
		return true
	}
	return false
}

// DecodeDirectory decodes the raw content of a directory. It returns the entries in on-disk
// order and the number of unused records following the last one in use.
func DecodeDirectory(raw []byte) ([]FileEntry, int, error) {
	var (
		entries   []FileEntry
		fragments [][]uint16
	)

	for off := 0; off+entrySize <= len(raw); off += entrySize {
		record := raw[off : off+entrySize]
		switch {
		case record[0] == entryFree:
			return entries, (len(raw) - off) / entrySize, nil
		case record[0] == entryDeleted:
			// Deleted records are skipped without ending a pending long name.
			continue
		case isLongNameRecord(record[11]):
			fragments = append(fragments, longNameUnits(record))
			continue
		}

		entry, err := decodeEntry(record)
		if err != nil {
			return nil, 0, err
		}
		if len(fragments) > 0 {
			entry.LongName, err = decodeLongName(fragments)
			if err != nil {
				return nil, 0, checkpoint.Wrap(err, ErrDecode)
			}
			fragments = nil
		}
		entries = append(entries, entry)
	}
	return entries, 0, nil
}

// longNameUnits returns the code units of a long filename record up to the terminator.
func longNameUnits(record []byte) []uint16 {
	units := make([]uint16, 0, lfnCharsPerEntry)
	for _, off := range lfnUnitOffsets {
		u := binary.LittleEndian.Uint16(record[off:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return units
}

// decodeLongName joins the fragments, which are stored in reverse order, and decodes them as UTF-16.
// Unpaired surrogates are reported as ErrDecode.
func decodeLongName(fragments [][]uint16) (string, error) {
	var (
		buf         []byte
		replacement int
	)
	for i := len(fragments) - 1; i >= 0; i-- {
		for _, u := range fragments[i] {
			if u == utf8.RuneError {
				replacement++
			}
			buf = append(buf, byte(u), byte(u>>8))
		}
	}

	name, err := utf16le.NewDecoder().Bytes(buf)
	if err != nil {
		return "", checkpoint.From(err)
	}
	if bytes.Count(name, []byte(string(utf8.RuneError))) != replacement {
		return "", checkpoint.Errorf(ErrDecode, "long name contains unpaired surrogates")
	}
	return string(name), nil
}

func decodeEntry(record []byte) (FileEntry, error) {
	var h EntryHeader
	if err := binary.Read(bytes.NewReader(record), binary.LittleEndian, &h); err != nil {
		return FileEntry{}, checkpoint.Wrap(err, ErrDecode)
	}

	return FileEntry{
		ShortName:     formatShortName(h.Name, h.NTReserved),
		IsDirectory:   h.Attribute&AttrDirectory != 0,
		IsReadOnly:    h.Attribute&AttrReadOnly != 0,
		IsHidden:      h.Attribute&AttrHidden != 0,
		IsSystem:      h.Attribute&AttrSystem != 0,
		IsVolumeLabel: h.Attribute&AttrVolumeID != 0,
		FirstCluster:  uint32(h.FirstClusterHI)<<16 | uint32(h.FirstClusterLO),
		Size:          h.FileSize,
		LastModified:  timestamp(h.WriteDate, h.WriteTime),
	}, nil
}

// existingShortNames returns a lookup reporting whether a raw short name is used by entries.
func existingShortNames(entries []FileEntry) func([shortNameLen]byte) bool {
	return func(raw [shortNameLen]byte) bool {
		name := formatShortName(raw, 0)
		for _, e := range entries {
			if strings.EqualFold(e.ShortName, name) {
				return true
			}
		}
		return false
	}
}

// SlotsFor returns the number of directory records a new entry called name occupies in a
// directory containing existing.
func SlotsFor(name string, existing []FileEntry) (int, error) {
	if err := validLongName(name); err != nil {
		return 0, err
	}
	sn, err := generateShortName(name, existingShortNames(existing))
	if err != nil {
		return 0, err
	}
	if !sn.needsLFN {
		return 1, nil
	}
	units, err := utf16le.NewEncoder().String(name)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrInvalidName)
	}
	return (len(units)/2+lfnCharsPerEntry-1)/lfnCharsPerEntry + 1, nil
}

// EncodeNewEntry returns the directory records of a new entry: the long filename records, if the
// name needs them, followed by the normal record. attrs is a combination of the Attr constants.
func EncodeNewEntry(name string, firstCluster uint32, size uint32, attrs byte, modified time.Time, existing []FileEntry) ([]byte, error) {
	if err := validLongName(name); err != nil {
		return nil, err
	}
	sn, err := generateShortName(name, existingShortNames(existing))
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	if sn.needsLFN {
		if err := writeLongNameRecords(buf, name, shortNameChecksum(sn.raw)); err != nil {
			return nil, err
		}
	}

	h := EntryHeader{
		Name:           sn.raw,
		Attribute:      attrs,
		NTReserved:     sn.ntFlags,
		CreateTime:     FormatTime(modified),
		CreateDate:     FormatDate(modified),
		LastAccessDate: FormatDate(modified),
		FirstClusterHI: uint16(firstCluster >> 16),
		WriteTime:      FormatTime(modified),
		WriteDate:      FormatDate(modified),
		FirstClusterLO: uint16(firstCluster),
		FileSize:       size,
	}
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, checkpoint.From(err)
	}
	return buf.Bytes(), nil
}

// writeLongNameRecords writes the long filename records of name, highest ordinal first.
func writeLongNameRecords(buf *bytes.Buffer, name string, checksum byte) error {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return checkpoint.Wrap(err, ErrInvalidName)
	}
	units := make([]uint16, len(encoded)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(encoded[2*i:])
	}

	count := (len(units) + lfnCharsPerEntry - 1) / lfnCharsPerEntry
	for n := count; n >= 1; n-- {
		var part [lfnCharsPerEntry]uint16
		chunk := units[(n-1)*lfnCharsPerEntry:]
		if len(chunk) > lfnCharsPerEntry {
			chunk = chunk[:lfnCharsPerEntry]
		}
		for i := range part {
			switch {
			case i < len(chunk):
				part[i] = chunk[i]
			case i == len(chunk):
				part[i] = 0x0000
			default:
				part[i] = 0xFFFF
			}
		}

		lfn := LongFilenameEntry{
			Sequence:  byte(n),
			Attribute: AttrLongName,
			Checksum:  checksum,
		}
		if n == count {
			lfn.Sequence |= lfnLast
		}
		copy(lfn.First[:], part[0:5])
		copy(lfn.Second[:], part[5:11])
		copy(lfn.Third[:], part[11:13])

		if err := binary.Write(buf, binary.LittleEndian, lfn); err != nil {
			return checkpoint.From(err)
		}
	}
	return nil
}

// setFirstCluster patches the first cluster of the normal record at the end of records.
func setFirstCluster(records []byte, cluster uint32) {
	h := records[len(records)-entrySize:]
	binary.LittleEndian.PutUint16(h[20:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(h[26:], uint16(cluster))
}

// dotRecords returns the "." and ".." records which start a new directory.
// parent is 0 if the parent is the root directory.
func dotRecords(self, parent uint32, modified time.Time) []byte {
	buf := &bytes.Buffer{}
	for i, c := range []uint32{self, parent} {
		h := EntryHeader{
			Attribute:      AttrDirectory,
			CreateTime:     FormatTime(modified),
			CreateDate:     FormatDate(modified),
			LastAccessDate: FormatDate(modified),
			FirstClusterHI: uint16(c >> 16),
			WriteTime:      FormatTime(modified),
			WriteDate:      FormatDate(modified),
			FirstClusterLO: uint16(c),
		}
		copy(h.Name[:], "           ")
		h.Name[0] = '.'
		if i == 1 {
			h.Name[1] = '.'
		}
		// Writing a fixed size struct into a bytes.Buffer cannot fail.
		_ = binary.Write(buf, binary.LittleEndian, h)
	}
	return buf.Bytes()
}
