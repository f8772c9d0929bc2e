package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/usbfat/fat32"
	"github.com/usbfat/fat32/image"
)

// main is just a example main to play with the FAT32 driver.
// Create an image using 'go run ./cmd/generate' and pass testdata/scenario.img.
func main() {
	argsWithoutProg := os.Args[1:]
	if len(argsWithoutProg) <= 0 {
		fmt.Println("Please provide a filename.")
		os.Exit(1)
	}

	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	dev, err := image.Open(afero.NewOsFs(), argsWithoutProg[0], image.WithLogger(log))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer dev.Close()

	driver := fat32.NewDriver(fat32.NewSyncDevice(dev, fat32.WithSyncLogger(log)), fat32.WithLogger(log))
	if err := driver.Mount(0); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer driver.Unmount()

	info, err := driver.Info()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("Opened volume '%v' with %v clusters of %v bytes\n\n", info.ReservedRegion.VolumeLabel, info.ClusterCount, info.ClusterSize)

	fat := fat32.NewFs(driver)
	afero.Walk(fat, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Println(err)
			return err
		}
		fmt.Println(path, info.IsDir(), info.ModTime())
		return nil
	})

	// Browse like a file manager.
	if err := driver.ChangeDirectory("DOCS"); err == nil {
		entries, err := driver.List()
		if err != nil {
			fmt.Println("could not list", err)
			os.Exit(1)
		}
		fmt.Println("\nEntries of " + driver.Path() + ":")
		for _, e := range entries {
			fmt.Println(" ", e.Name(), e.Size)
		}
		if err := driver.ChangeDirectoryBack(); err != nil {
			fmt.Println("could not go back", err)
			os.Exit(1)
		}
	}

	file, err := fat.Open("README.TXT")
	if err != nil {
		fmt.Println("could not open the root file", err)
		os.Exit(1)
	}

	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		fmt.Println("could not stat the file", err)
		os.Exit(1)
	}
	buffer := make([]byte, stat.Size())
	n, err := file.Read(buffer)
	if err != nil {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Println(stat.Size(), n)
	fmt.Println("\n\nContent of " + stat.Name() + ":\n\n" + string(buffer))

	buffer = make([]byte, 20)
	offset, err := file.Seek(19, io.SeekStart)
	if err != nil {
		fmt.Println("could not seek", err)
		os.Exit(1)
	}
	fmt.Println(offset, err)

	n, err = file.Read(buffer)
	if err != nil {
		fmt.Println("could not read the file", err)
		os.Exit(1)
	}
	fmt.Println("\n\nContent of " + stat.Name() + " using an offset and small buffer:\n\n" + string(buffer[:n]))

	name := fmt.Sprintf("Example run %s.txt", time.Now().Format("20060102-150405"))
	if err := driver.WriteNewFile(name, []byte("written by the example\n"), false, false, false, time.Now()); err != nil {
		fmt.Println("could not write", err)
		os.Exit(1)
	}
	fmt.Println("\nCreated " + name)
}
