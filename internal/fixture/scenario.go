package fixture

import "strings"

// ReadmeContent is the content of README.TXT in the Scenario volume.
var ReadmeContent = strings.Repeat("FAT32 test volume. ", 7)[:120]

// GuideContent is the content of DOCS/GUIDE.TXT in the Scenario volume. It spans two clusters.
var GuideContent = strings.Repeat("0123456789abcdef", 300)

// ScenarioVolume has one FAT32 partition at LBA 2048 with 4 KiB clusters.
func ScenarioVolume() Volume {
	return Volume{
		PartitionLBA:      2048,
		BytesPerSector:    512,
		SectorsPerCluster: 8,
		ReservedSectors:   32,
		FATCopies:         2,
		SectorsPerFAT:     972,
		Clusters:          64,
		Label:             "SCENARIO",
	}
}

// Scenario builds the ScenarioVolume with this content:
//
//	/README.TXT          120 bytes, the rest of its cluster holds garbage
//	/DOCS/
//	/DOCS/GUIDE.TXT      4800 bytes
//	/DOCS/My Notes.txt   empty, with a long name
func Scenario() *Builder {
	b := New(ScenarioVolume())

	readme := b.Chain(1)
	garbage := []byte(strings.Repeat("#", b.Volume.ClusterSize()))
	b.WriteData(readme, garbage)
	b.WriteData(readme, []byte(ReadmeContent))
	b.AddEntry(2, Entry{Name: "README  TXT", Attr: AttrArchive, Cluster: readme[0], Size: uint32(len(ReadmeContent)), WriteDate: 0x5A21, WriteTime: 0x6000})

	docs := b.Chain(1)
	b.AddEntry(2, Entry{Name: "DOCS", Attr: AttrDirectory, Cluster: docs[0]})
	b.AddEntry(docs[0], Entry{Name: ".", Attr: AttrDirectory, Cluster: docs[0]})
	b.AddEntry(docs[0], Entry{Name: "..", Attr: AttrDirectory, Cluster: 0})

	guide := b.Chain(2)
	b.WriteData(guide, []byte(GuideContent))
	b.AddEntry(docs[0], Entry{Name: "GUIDE   TXT", Attr: AttrArchive, Cluster: guide[0], Size: uint32(len(GuideContent))})

	b.AddLongEntry(docs[0], "My Notes.txt", Entry{Name: "MYNOTE~1TXT", Attr: AttrArchive})
	return b
}
