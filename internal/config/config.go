// Package config loads heapcheck settings from an optional YAML file
package config

import (
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapcheck/memutils"
	"github.com/vkngwrapper/heapcheck/memutils/metadata"
	"github.com/vkngwrapper/heapcheck/replay"
	"github.com/vkngwrapper/heapcheck/score"
	"github.com/vkngwrapper/heapcheck/validator"
	"gopkg.in/yaml.v3"
)

// Config holds every setting a validation run takes. Zero values in a loaded file leave the defaults
// in place.
type Config struct {
	// TmpDir is the directory the program under test writes its logs to
	TmpDir string `yaml:"tmp_dir"`
	// LogExt is the extension of each per-thread log file
	LogExt string `yaml:"log_ext"`
	// Timeout bounds the run of the program under test
	Timeout time.Duration `yaml:"timeout"`

	Alignment uint64 `yaml:"alignment"`
	Index     string `yaml:"index"`
	// ReorderWindow is the number of records each log may be out of order by. Zero leaves a run
	// with a single log to validator.DefaultSingleLogReorderWindow and every other run strict.
	ReorderWindow int    `yaml:"reorder_window"`
	SlotCount     uint64 `yaml:"slot_count"`
	SlotSize      uint64 `yaml:"slot_size"`
}

// Default returns the settings heapcheck uses when no file is given
func Default() *Config {
	return &Config{
		TmpDir:    "tmp/",
		LogExt:    ".out",
		Alignment: replay.DefaultAlignment,
		Index:     metadata.IndexOrdered.String(),
		SlotCount: score.DefaultSlotCount,
		SlotSize:  score.DefaultSlotSize,
	}
}

// Load reads the YAML file at path over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config %s", path)
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	d.KnownFields(true)
	err = d.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Validate checks the settings that can be checked without running anything
func (c *Config) Validate() error {
	if c.LogExt == "" {
		return errors.New("log_ext must not be empty")
	}

	if c.ReorderWindow < 0 {
		return errors.Newf("reorder_window must not be negative, got %d", c.ReorderWindow)
	}

	err := memutils.CheckPow2(c.Alignment, "alignment")
	if err != nil {
		return err
	}

	_, err = metadata.ParseIndexKind(c.Index)
	return err
}

// ValidatorOptions converts the settings to validator.CreateOptions
func (c *Config) ValidatorOptions() (validator.CreateOptions, error) {
	index, err := metadata.ParseIndexKind(c.Index)
	if err != nil {
		return validator.CreateOptions{}, err
	}

	return validator.CreateOptions{
		Alignment:     c.Alignment,
		Index:         index,
		ReorderWindow: c.ReorderWindow,
		SlotCount:     c.SlotCount,
		SlotSize:      c.SlotSize,
	}, nil
}
