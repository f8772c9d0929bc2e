package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/usbfat/fat32/internal/fixture"
)

// superfloppy is a medium without partition table holding a single small volume.
func superfloppy() *fixture.Builder {
	b := fixture.New(fixture.Volume{
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   8,
		FATCopies:         2,
		SectorsPerFAT:     1,
		Clusters:          100,
		Label:             "FLOPPY",
	})
	c := b.Chain(1)
	b.WriteData(c, []byte("hello from a superfloppy\n"))
	b.AddEntry(2, fixture.Entry{Name: "HELLO   TXT", Attr: fixture.AttrArchive, Cluster: c[0], Size: 25})
	return b
}

// main writes the test images to testdata, or to the directory given as first argument.
// Can be executed using 'go run ./cmd/generate' from the project root.
func main() {
	dest := "testdata"
	if len(os.Args) > 1 {
		dest = os.Args[1]
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dest, 0755); err != nil {
		logrus.WithError(err).Fatal("could not create the destination")
	}

	images := map[string]*fixture.Builder{
		"scenario.img":    fixture.Scenario(),
		"superfloppy.img": superfloppy(),
		"empty.img":       fixture.New(fixture.ScenarioVolume()),
	}
	for name, b := range images {
		path := filepath.Join(dest, name)
		if err := b.WriteTo(fs, path); err != nil {
			logrus.WithError(err).WithField("image", path).Fatal("could not write the image")
		}
		logrus.WithField("image", path).WithField("bytes", len(b.Bytes())).Info("written")
	}
}
