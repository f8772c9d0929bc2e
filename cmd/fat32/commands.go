package main

import (
	"fmt"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"github.com/usbfat/fat32"
)

func commands(host afero.Fs, cfg *config) []*cli.Command {
	// withVolume mounts the configured volume for the duration of fn.
	withVolume := func(c *cli.Context, fn func(v *volume) error) error {
		if err := cfg.validate(); err != nil {
			return err
		}
		v, err := openVolume(host, *cfg, cfg.logger(c))
		if err != nil {
			return err
		}
		defer v.Close()
		return fn(v)
	}

	return []*cli.Command{
		{
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[DIR]",
			Action: func(c *cli.Context) error {
				return withVolume(c, func(v *volume) error {
					return list(c, v, c.Args().First())
				})
			},
		},
		{
			Name:      "cat",
			Usage:     "print a file",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.Exit("cat needs exactly one FILE", 2)
				}
				return withVolume(c, func(v *volume) error {
					data, err := afero.ReadFile(v.fs, c.Args().First())
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(data)
					return err
				})
			},
		},
		{
			Name:      "put",
			Usage:     "copy a host file to a new file of the volume",
			ArgsUsage: "SOURCE DEST",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "read-only", Usage: "set the read only attribute"},
				&cli.BoolFlag{Name: "hidden", Usage: "set the hidden attribute"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.Exit("put needs SOURCE and DEST", 2)
				}
				src, dest := c.Args().Get(0), c.Args().Get(1)
				stat, err := host.Stat(src)
				if err != nil {
					return err
				}
				data, err := afero.ReadFile(host, src)
				if err != nil {
					return err
				}

				var attrs byte
				if c.Bool("read-only") {
					attrs |= fat32.AttrReadOnly
				}
				if c.Bool("hidden") {
					attrs |= fat32.AttrHidden
				}
				return withVolume(c, func(v *volume) error {
					if err := v.driver.CreatePath(dest, data, attrs, false, stat.ModTime()); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "%s: %s written\n", dest, humanize.Bytes(uint64(len(data))))
					return nil
				})
			},
		},
		{
			Name:      "mkdir",
			Usage:     "create a directory",
			ArgsUsage: "DIR",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "parents", Aliases: []string{"p"}, Usage: "create missing parent directories"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.Exit("mkdir needs exactly one DIR", 2)
				}
				return withVolume(c, func(v *volume) error {
					if c.Bool("parents") {
						return v.fs.MkdirAll(c.Args().First(), 0777)
					}
					return v.fs.Mkdir(c.Args().First(), 0777)
				})
			},
		},
		{
			Name:  "info",
			Usage: "show the geometry of the volume",
			Action: func(c *cli.Context) error {
				return withVolume(c, func(v *volume) error {
					return info(c, v)
				})
			},
		},
		{
			Name:      "tree",
			Usage:     "print all entries below a directory",
			ArgsUsage: "[DIR]",
			Action: func(c *cli.Context) error {
				return withVolume(c, func(v *volume) error {
					return tree(c, v, c.Args().First())
				})
			},
		},
	}
}

// list walks to dir with the navigation of the driver and prints its entries.
func list(c *cli.Context, v *volume, dir string) error {
	for _, name := range strings.FieldsFunc(dir, func(r rune) bool { return r == '/' || r == '\\' }) {
		var err error
		if name == ".." {
			err = v.driver.ChangeDirectoryBack()
		} else {
			err = v.driver.ChangeDirectory(name)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}
	}

	entries, err := v.driver.List()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, v.driver.Path()+":")
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		if e.IsVolumeLabel || e.Name() == "." || e.Name() == ".." {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.FileInfo().Mode(), humanize.Bytes(uint64(e.Size)), e.LastModified.Format("2006-01-02 15:04"), e.Name())
	}
	return w.Flush()
}

func info(c *cli.Context, v *volume) error {
	i, err := v.driver.Info()
	if err != nil {
		return err
	}
	r := i.ReservedRegion
	size := uint64(i.ClusterCount) * uint64(i.ClusterSize)

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "label\t%s\n", r.VolumeLabel)
	fmt.Fprintf(w, "partition\t%d (type 0x%02X, first sector %s)\n", i.PartitionIndex, i.Partition.Type, humanize.Comma(int64(i.Partition.LBAStart)))
	fmt.Fprintf(w, "sector size\t%d\n", r.BytesPerSector)
	fmt.Fprintf(w, "cluster size\t%s\n", humanize.IBytes(uint64(i.ClusterSize)))
	fmt.Fprintf(w, "clusters\t%s\n", humanize.Comma(int64(i.ClusterCount)))
	fmt.Fprintf(w, "data size\t%s\n", humanize.IBytes(size))
	fmt.Fprintf(w, "FAT copies\t%d of %d sectors at %d\n", r.FATCopies, r.SectorsPerFAT, i.FATStart)
	fmt.Fprintf(w, "root cluster\t%d\n", r.RootCluster)
	return w.Flush()
}

func tree(c *cli.Context, v *volume, dir string) error {
	if dir == "" {
		dir = "/"
	}
	return afero.Walk(v.fs, dir, func(p string, stat os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			fmt.Fprintln(c.App.Writer, p)
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path.Clean(p), path.Clean(dir)), "/")
		depth := strings.Count(rel, "/") + 1
		if stat.IsDir() {
			fmt.Fprintf(c.App.Writer, "%s%s/\n", strings.Repeat("  ", depth), stat.Name())
			return nil
		}
		fmt.Fprintf(c.App.Writer, "%s%s (%s)\n", strings.Repeat("  ", depth), stat.Name(), humanize.Bytes(uint64(stat.Size())))
		return nil
	})
}
