package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"github.com/usbfat/fat32/checkpoint"
	"gopkg.in/yaml.v2"
)

// config selects the image and volume every command works on.
type config struct {
	Image      string `yaml:"image"`
	Partition  int    `yaml:"partition"`
	SectorSize int    `yaml:"sector_size"`
	LogLevel   string `yaml:"log_level"`
}

func defaultConfig() config {
	return config{
		SectorSize: 512,
		LogLevel:   "warning",
	}
}

// loadConfig reads the YAML file name of fs on top of the defaults. An empty name yields the defaults.
func loadConfig(fs afero.Fs, name string) (config, error) {
	cfg := defaultConfig()
	if name == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return config{}, checkpoint.From(err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return config{}, checkpoint.Errorf(err, "config %s", name)
	}
	return cfg, nil
}

// override replaces the values of cfg by the flags set on the command line or by environment.
func (cfg *config) override(c *cli.Context) {
	if c.IsSet(flagImage) {
		cfg.Image = c.String(flagImage)
	}
	if c.IsSet(flagPartition) {
		cfg.Partition = c.Int(flagPartition)
	}
	if c.IsSet(flagSectorSize) {
		cfg.SectorSize = c.Int(flagSectorSize)
	}
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
}

func (cfg config) validate() error {
	if cfg.Image == "" {
		return fmt.Errorf("no image given, use --%s or the image key of the config file", flagImage)
	}
	if cfg.Partition < 0 || cfg.Partition > 3 {
		return fmt.Errorf("partition %d out of range 0-3", cfg.Partition)
	}
	switch cfg.SectorSize {
	case 512, 1024, 2048, 4096:
	default:
		return fmt.Errorf("unsupported sector size %d", cfg.SectorSize)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// logger returns a logger writing to stderr at the configured level.
func (cfg config) logger(c *cli.Context) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(c.App.ErrWriter)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}
