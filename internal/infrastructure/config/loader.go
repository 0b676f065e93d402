// Package config reads and writes the .v8cov.yaml project file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/v8cov/internal/application"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = ".v8cov.yaml"

type Loader struct{}

type fileConfig struct {
	TempDirectory string          `yaml:"temp-directory,omitempty"`
	ResolveRoot   string          `yaml:"resolve-root,omitempty"`
	Include       []string        `yaml:"include,omitempty"`
	Exclude       []string        `yaml:"exclude,omitempty"`
	Reporter      string          `yaml:"reporter,omitempty"`
	All           bool            `yaml:"all,omitempty"`
	OmitRelative  bool            `yaml:"omit-relative,omitempty"`
	WrapperLength int             `yaml:"wrapper-length,omitempty"`
	Watermarks    *fileWatermarks `yaml:"watermarks,omitempty"`
}

type fileWatermarks struct {
	Statements []float64 `yaml:"statements,flow,omitempty"`
	Branches   []float64 `yaml:"branches,flow,omitempty"`
	Functions  []float64 `yaml:"functions,flow,omitempty"`
}

func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l Loader) Load(path string) (application.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return application.Config{}, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return application.Config{}, err
	}

	out := application.Config{
		TempDirectory: cfg.TempDirectory,
		ResolveRoot:   cfg.ResolveRoot,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
		Reporter:      application.OutputFormat(cfg.Reporter),
		Watermarks:    application.DefaultWatermarks(),
		All:           cfg.All,
		OmitRelative:  cfg.OmitRelative,
		WrapperLength: cfg.WrapperLength,
	}

	if cfg.Watermarks != nil {
		if err := applyWatermark(&out.Watermarks.Statements, "statements", cfg.Watermarks.Statements); err != nil {
			return application.Config{}, err
		}
		if err := applyWatermark(&out.Watermarks.Branches, "branches", cfg.Watermarks.Branches); err != nil {
			return application.Config{}, err
		}
		if err := applyWatermark(&out.Watermarks.Functions, "functions", cfg.Watermarks.Functions); err != nil {
			return application.Config{}, err
		}
	}

	return out, nil
}

// applyWatermark maps the conventional [low, high] pair onto a watermark.
// An absent pair keeps the default.
func applyWatermark(mark *application.Watermark, name string, pair []float64) error {
	if pair == nil {
		return nil
	}
	if len(pair) != 2 || pair[0] > pair[1] {
		return fmt.Errorf("watermarks.%s: want [low, high] with low <= high", name)
	}
	mark.Low, mark.High = pair[0], pair[1]
	return nil
}

func Write(w io.Writer, cfg application.Config) error {
	out := fileConfig{
		TempDirectory: cfg.TempDirectory,
		ResolveRoot:   cfg.ResolveRoot,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
		Reporter:      string(cfg.Reporter),
		All:           cfg.All,
		OmitRelative:  cfg.OmitRelative,
		WrapperLength: cfg.WrapperLength,
		Watermarks: &fileWatermarks{
			Statements: []float64{cfg.Watermarks.Statements.Low, cfg.Watermarks.Statements.High},
			Branches:   []float64{cfg.Watermarks.Branches.Low, cfg.Watermarks.Branches.High},
			Functions:  []float64{cfg.Watermarks.Functions.Low, cfg.Watermarks.Functions.High},
		},
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(out)
}
