package fat32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usbfat/fat32/internal/fixture"
)

// directory returns a zeroed directory of n records starting with the given records.
func directory(n int, records ...[]byte) []byte {
	raw := make([]byte, n*entrySize)
	off := 0
	for _, r := range records {
		off += copy(raw[off:], r)
	}
	return raw
}

func shortRecord(e fixture.Entry) []byte {
	b := fixture.New(fixture.Volume{BytesPerSector: 512, SectorsPerCluster: 1, ReservedSectors: 1, FATCopies: 1, SectorsPerFAT: 1, Clusters: 2})
	b.AddEntry(2, e)
	return append([]byte(nil), b.Cluster(2)[:entrySize]...)
}

func TestDecodeDirectory_scenario(t *testing.T) {
	b := fixture.Scenario()

	entries, free, err := DecodeDirectory(b.Cluster(2))
	require.NoError(t, err)
	assert.Equal(t, 126, free)
	require.Len(t, entries, 2)

	assert.Equal(t, FileEntry{
		ShortName:    "README.TXT",
		FirstCluster: 3,
		Size:         120,
		LastModified: time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC),
	}, entries[0])
	assert.Equal(t, "DOCS", entries[1].Name())
	assert.True(t, entries[1].IsDirectory)
	assert.Equal(t, uint32(4), entries[1].FirstCluster)

	entries, free, err = DecodeDirectory(b.Cluster(4))
	require.NoError(t, err)
	assert.Equal(t, 128-5, free)
	require.Len(t, entries, 4)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{".", "..", "GUIDE.TXT", "My Notes.txt"}, names)
	assert.Equal(t, "MYNOTE~1.TXT", entries[3].ShortName)
	assert.Equal(t, uint32(4800), entries[2].Size)
	assert.Equal(t, uint32(5), entries[2].FirstCluster)
}

func TestDecodeDirectory(t *testing.T) {
	notes := fixture.LongNameRecords("My Notes.txt", "MYNOTE~1TXT")
	notesShort := shortRecord(fixture.Entry{Name: "MYNOTE~1TXT", Attr: fixture.AttrArchive})
	deleted := shortRecord(fixture.Entry{Name: "\xe5LD     TXT", Attr: fixture.AttrArchive})

	surrogate := append([]byte(nil), notes[0]...)
	binary.LittleEndian.PutUint16(surrogate[1:], 0xD800)

	replacement := fixture.LongNameRecords("a\uFFFDb", "AB~1")

	tests := []struct {
		name      string
		raw       []byte
		want      []string
		wantFree  int
		wantShort []string
		wantErr   error
	}{
		{
			name:      "empty directory",
			raw:       directory(4),
			wantFree:  4,
			want:      nil,
			wantShort: nil,
		},
		{
			name:      "long name",
			raw:       directory(4, notes[0], notesShort),
			want:      []string{"My Notes.txt"},
			wantShort: []string{"MYNOTE~1.TXT"},
			wantFree:  2,
		},
		{
			name:      "deleted record between long name and short record",
			raw:       directory(4, notes[0], deleted, notesShort),
			want:      []string{"My Notes.txt"},
			wantShort: []string{"MYNOTE~1.TXT"},
			wantFree:  1,
		},
		{
			name: "stops at the first free record",
			raw: directory(4,
				shortRecord(fixture.Entry{Name: "A       TXT"}),
				make([]byte, entrySize),
				shortRecord(fixture.Entry{Name: "B       TXT"}),
			),
			want:      []string{"A.TXT"},
			wantShort: []string{"A.TXT"},
			wantFree:  3,
		},
		{
			name: "full directory",
			raw: directory(2,
				shortRecord(fixture.Entry{Name: "A       TXT"}),
				shortRecord(fixture.Entry{Name: "B       TXT"}),
			),
			want:      []string{"A.TXT", "B.TXT"},
			wantShort: []string{"A.TXT", "B.TXT"},
			wantFree:  0,
		},
		{
			name:      "lower case flags",
			raw:       directory(2, shortRecord(fixture.Entry{Name: "README  TXT", NTReserved: 0x18})),
			want:      []string{"readme.txt"},
			wantShort: []string{"readme.txt"},
			wantFree:  1,
		},
		{
			name:      "replacement character in a long name",
			raw:       directory(3, replacement[0], shortRecord(fixture.Entry{Name: "AB~1"})),
			want:      []string{"a\uFFFDb"},
			wantShort: []string{"AB~1"},
			wantFree:  1,
		},
		{
			name:    "unpaired surrogate",
			raw:     directory(4, surrogate, notesShort),
			wantErr: ErrDecode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, free, err := DecodeDirectory(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeDirectory() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFree, free)

			var names, shorts []string
			for _, e := range entries {
				names = append(names, e.Name())
				shorts = append(shorts, e.ShortName)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.wantShort, shorts)
		})
	}
}

func TestDecodeDirectory_attributes(t *testing.T) {
	raw := directory(4,
		shortRecord(fixture.Entry{Name: "SCENARIO", Attr: fixture.AttrVolumeID}),
		shortRecord(fixture.Entry{Name: "SECRET  TXT", Attr: fixture.AttrHidden | fixture.AttrReadOnly | 0x04}),
		shortRecord(fixture.Entry{Name: "BIG     BIN", Attr: fixture.AttrArchive, Cluster: 0x00123456, Size: 0xFFFFFFFF}),
	)

	entries, _, err := DecodeDirectory(raw)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].IsVolumeLabel)
	assert.Equal(t, "SCENARIO", entries[0].ShortName)

	assert.True(t, entries[1].IsHidden)
	assert.True(t, entries[1].IsReadOnly)
	assert.True(t, entries[1].IsSystem)
	assert.False(t, entries[1].IsDirectory)

	assert.Equal(t, uint32(0x00123456), entries[2].FirstCluster)
	assert.Equal(t, uint32(0xFFFFFFFF), entries[2].Size)
	assert.True(t, entries[2].LastModified.IsZero())
}

func TestEncodeNewEntry_roundTrip(t *testing.T) {
	modified := time.Date(2024, time.May, 6, 10, 20, 30, 0, time.UTC)

	tests := []struct {
		name       string
		input      string
		attrs      byte
		wantLFN    int
		wantShort  string
		wantDir    bool
		wantHidden bool
	}{
		{name: "short name", input: "a.txt", attrs: AttrArchive, wantLFN: 0, wantShort: "a.txt"},
		{name: "mixed case", input: "Readme.txt", attrs: AttrArchive, wantLFN: 1, wantShort: "README.TXT"},
		{name: "two records", input: "a-much-longer-filename.dat", attrs: AttrArchive, wantLFN: 2, wantShort: "A-MUCH~1.DAT"},
		{name: "three records", input: strings.Repeat("x", 35) + ".txt", attrs: AttrArchive, wantLFN: 3, wantShort: "XXXXXX~1.TXT"},
		{name: "four records", input: strings.Repeat("y", 36) + ".txt", attrs: AttrArchive, wantLFN: 4, wantShort: "YYYYYY~1.TXT"},
		{name: "non latin", input: "日本語のファイル.txt", attrs: AttrArchive, wantLFN: 1, wantShort: "______~1.TXT"},
		{name: "surrogate pair", input: "emoji-\U0001F600.txt", attrs: AttrArchive | AttrHidden, wantLFN: 1, wantShort: "EMOJI-~1.TXT", wantHidden: true},
		{name: "dotless i", input: "\u0131.txt", attrs: AttrArchive, wantLFN: 1, wantShort: "I~1.TXT"},
		{name: "long s", input: "\u017f.txt", attrs: AttrArchive, wantLFN: 1, wantShort: "S~1.TXT"},
		{name: "lower case latin-1", input: "\u00e9t\u00e9.txt", attrs: AttrArchive, wantLFN: 0, wantShort: "\u00e9t\u00e9.txt"},
		{name: "directory", input: "Photos 2024", attrs: AttrDirectory, wantLFN: 1, wantShort: "PHOTOS~1", wantDir: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := EncodeNewEntry(tt.input, 0x00010009, 1234, tt.attrs, modified, nil)
			require.NoError(t, err)
			assert.Len(t, records, (tt.wantLFN+1)*entrySize)

			slots, err := SlotsFor(tt.input, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLFN+1, slots)

			entries, free, err := DecodeDirectory(directory(8, records))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, 8-slots, free)

			got := entries[0]
			assert.Equal(t, tt.input, got.Name())
			assert.Equal(t, tt.wantShort, got.ShortName)
			assert.Equal(t, uint32(0x00010009), got.FirstCluster)
			assert.Equal(t, uint32(1234), got.Size)
			assert.Equal(t, tt.wantDir, got.IsDirectory)
			assert.Equal(t, tt.wantHidden, got.IsHidden)
			assert.Equal(t, modified, got.LastModified)
		})
	}
}

func TestEncodeNewEntry_layout(t *testing.T) {
	tests := []struct {
		name  string
		input string
		short string
	}{
		{name: "padded record", input: "Readme.txt", short: "README  TXT"},
		{name: "terminator fills the record", input: "My Notes.txt", short: "MYNOTE~1TXT"},
		{name: "no terminator", input: "a-much-longer-filename.dat", short: "A-MUCH~1DAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := EncodeNewEntry(tt.input, 7, 0, AttrArchive, time.Time{}, nil)
			require.NoError(t, err)

			want := bytes.Join(fixture.LongNameRecords(tt.input, tt.short), nil)
			assert.Equal(t, want, records[:len(want)])

			h := records[len(want):]
			assert.Equal(t, tt.short, string(h[:shortNameLen]))
			assert.Equal(t, byte(AttrArchive), h[11])
		})
	}
}

func TestEncodeNewEntry_clusterSplit(t *testing.T) {
	records, err := EncodeNewEntry("DATA.BIN", 0x0ABC1234, 5, AttrArchive, time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, records, entrySize)

	assert.Equal(t, uint16(0x0ABC), binary.LittleEndian.Uint16(records[20:]))
	assert.Equal(t, uint16(0x1234), binary.LittleEndian.Uint16(records[26:]))

	setFirstCluster(records, 0x00020003)
	assert.Equal(t, uint16(0x0002), binary.LittleEndian.Uint16(records[20:]))
	assert.Equal(t, uint16(0x0003), binary.LittleEndian.Uint16(records[26:]))
}

func TestEncodeNewEntry_uniqueShortName(t *testing.T) {
	existing := []FileEntry{{ShortName: "MYNOTE~1.TXT", LongName: "My Notes.txt"}}

	records, err := EncodeNewEntry("My Notes.TXT", 7, 0, AttrArchive, time.Time{}, existing)
	require.NoError(t, err)
	h := records[len(records)-entrySize:]
	assert.Equal(t, "MYNOTE~2TXT", string(h[:shortNameLen]))

	existing = append(existing, FileEntry{ShortName: "README.TXT"})
	records, err = EncodeNewEntry("readme.txt", 7, 0, AttrArchive, time.Time{}, existing)
	require.NoError(t, err)
	require.Len(t, records, 2*entrySize, "a taken 8.3 name needs a numeric tail and a long name")
	h = records[entrySize:]
	assert.Equal(t, "README~1TXT", string(h[:shortNameLen]))
}

func TestEncodeNewEntry_invalidName(t *testing.T) {
	for _, name := range []string{"", "..", "a:b", "trailing.", strings.Repeat("n", 256)} {
		_, err := EncodeNewEntry(name, 7, 0, AttrArchive, time.Time{}, nil)
		assert.True(t, errors.Is(err, ErrInvalidName), "EncodeNewEntry(%q) error = %v", name, err)

		_, err = SlotsFor(name, nil)
		assert.True(t, errors.Is(err, ErrInvalidName), "SlotsFor(%q) error = %v", name, err)
	}
}

func Test_dotRecords(t *testing.T) {
	modified := time.Date(2024, time.May, 6, 10, 20, 30, 0, time.UTC)
	entries, free, err := DecodeDirectory(directory(4, dotRecords(9, 0, modified)))
	require.NoError(t, err)
	assert.Equal(t, 2, free)
	require.Len(t, entries, 2)

	assert.Equal(t, ".", entries[0].Name())
	assert.Equal(t, uint32(9), entries[0].FirstCluster)
	assert.Equal(t, "..", entries[1].Name())
	assert.Equal(t, uint32(0), entries[1].FirstCluster)
	for _, e := range entries {
		assert.True(t, e.IsDirectory)
		assert.Equal(t, modified, e.LastModified)
	}
}

func TestFileEntry_matches(t *testing.T) {
	e := FileEntry{ShortName: "MYNOTE~1.TXT", LongName: "My Notes.txt"}
	assert.True(t, e.matches("my notes.TXT"))
	assert.True(t, e.matches("mynote~1.txt"))
	assert.False(t, e.matches("My Notes"))
}
