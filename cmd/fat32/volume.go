package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/usbfat/fat32"
	"github.com/usbfat/fat32/image"
)

// volume is a mounted partition of an image file.
type volume struct {
	dev    *image.Device
	driver *fat32.Driver
	fs     *fat32.Fs
	log    logrus.FieldLogger
}

// openVolume opens the image of cfg on host and mounts the configured partition.
func openVolume(host afero.Fs, cfg config, log logrus.FieldLogger) (*volume, error) {
	dev, err := image.Open(host, cfg.Image, image.WithBlockSize(cfg.SectorSize), image.WithLogger(log))
	if err != nil {
		return nil, err
	}

	sync := fat32.NewSyncDevice(dev, fat32.WithSectorSize(cfg.SectorSize), fat32.WithSyncLogger(log))
	driver := fat32.NewDriver(sync, fat32.WithLogger(log))
	if err := driver.Mount(cfg.Partition); err != nil {
		dev.Close()
		return nil, err
	}

	return &volume{
		dev:    dev,
		driver: driver,
		fs:     fat32.NewFs(driver),
		log:    log,
	}, nil
}

// Close unmounts the partition and closes the image.
func (v *volume) Close() error {
	if err := v.driver.Unmount(); err != nil {
		v.log.WithError(err).Warn("unmount failed")
	}
	return v.dev.Close()
}
