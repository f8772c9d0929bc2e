package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

const (
	flagConfig     = "config"
	flagImage      = "image"
	flagPartition  = "partition"
	flagSectorSize = "sector-size"
	flagLogLevel   = "log-level"
)

// newApp builds the command line application. Images and configs are read from host.
func newApp(host afero.Fs) *cli.App {
	var cfg config

	return &cli.App{
		Name:    "fat32",
		Usage:   "browse and extend FAT32 volumes of disk images",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "YAML `FILE` with the default settings",
				EnvVars: []string{"FAT32_CONFIG"},
			},
			&cli.StringFlag{
				Name:    flagImage,
				Aliases: []string{"i"},
				Usage:   "disk image `FILE`",
				EnvVars: []string{"FAT32_IMAGE"},
			},
			&cli.IntFlag{
				Name:    flagPartition,
				Aliases: []string{"p"},
				Usage:   "index of the MBR partition to mount",
				EnvVars: []string{"FAT32_PARTITION"},
			},
			&cli.IntFlag{
				Name:    flagSectorSize,
				Usage:   "sector size of the image in bytes",
				EnvVars: []string{"FAT32_SECTOR_SIZE"},
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "logrus `LEVEL`",
				EnvVars: []string{"FAT32_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			loaded, err := loadConfig(host, c.String(flagConfig))
			if err != nil {
				return err
			}
			loaded.override(c)
			cfg = loaded
			return nil
		},
		Commands: commands(host, &cfg),
	}
}

func main() {
	if err := newApp(afero.NewOsFs()).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
