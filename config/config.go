// Package config holds the options of the andersen command, loaded from a
// YAML file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/heap"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/yaml.v3"
)

const (
	HeapAllocationSite = "allocation-site"
	HeapType           = "type"
)

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatDot      = "dot"
)

// DefaultMaxParallel bounds the number of programs analysed concurrently.
const DefaultMaxParallel = 4

// Config is the configuration of one invocation of the andersen command.
type Config struct {
	Options `yaml:",inline"`

	sourceFile string
}

type Options struct {
	// LogLevel is a logrus level name: panic, fatal, error, warn, info, debug
	// or trace.
	LogLevel string `yaml:"log-level"`

	// WorklistOrder is fifo or lifo. It does not change results.
	WorklistOrder string `yaml:"worklist-order"`

	// HeapModel is allocation-site (one object per allocation statement) or
	// type (one object per allocated type).
	HeapModel string `yaml:"heap-model"`

	// ReportFormat is one of text, markdown, html and dot.
	ReportFormat string `yaml:"report-format"`

	// ReportsDir is the directory reports are written to. When empty, reports
	// go to standard output.
	ReportsDir string `yaml:"reports-dir"`

	// DumpPointsTo includes the points-to set of every variable in reports.
	DumpPointsTo bool `yaml:"dump-points-to"`

	// DumpCallGraph includes every call edge in reports.
	DumpCallGraph bool `yaml:"dump-call-graph"`

	MaxParallel int `yaml:"max-parallel"`
}

// NewDefault returns the configuration used when no file is given.
func NewDefault() *Config {
	return &Config{
		Options: Options{
			LogLevel:      log.InfoLevel.String(),
			WorklistOrder: andersen.FIFO.String(),
			HeapModel:     HeapAllocationSite,
			ReportFormat:  FormatText,
			DumpCallGraph: true,
			MaxParallel:   DefaultMaxParallel,
		},
	}
}

// Load reads the configuration file at filename in fs. Options missing from
// the file keep their default value. A configured reports directory is
// created if it does not exist.
func Load(fs billy.Filesystem, filename string) (*Config, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, f); err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	cfg := NewDefault()
	if err := yaml.Unmarshal(buf.Bytes(), cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	cfg.sourceFile = filename

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	if cfg.ReportsDir != "" {
		if err := fs.MkdirAll(cfg.RelPath(cfg.ReportsDir), 0750); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", cfg.ReportsDir, err)
		}
	}

	return cfg, nil
}

// Validate checks the enumerated options.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Order(); err != nil {
		return err
	}

	switch c.HeapModel {
	case HeapAllocationSite, HeapType:
	default:
		return fmt.Errorf("unknown heap model %q", c.HeapModel)
	}

	switch c.ReportFormat {
	case FormatText, FormatMarkdown, FormatHTML, FormatDot:
	default:
		return fmt.Errorf("unknown report format %q", c.ReportFormat)
	}

	if c.MaxParallel <= 0 {
		return fmt.Errorf("max-parallel must be positive, got %d", c.MaxParallel)
	}
	return nil
}

// RelPath resolves filename relative to the directory of the config file.
func (c Config) RelPath(filename string) string {
	if c.sourceFile == "" || path.IsAbs(filename) {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

func (c Config) Order() (andersen.WorklistOrder, error) {
	switch c.WorklistOrder {
	case "", andersen.FIFO.String():
		return andersen.FIFO, nil
	case andersen.LIFO.String():
		return andersen.LIFO, nil
	default:
		return 0, fmt.Errorf("unknown worklist order %q", c.WorklistOrder)
	}
}

// NewHeapModel returns a fresh heap model of the configured kind. Models are
// stateful, so every analysis run needs its own.
func (c Config) NewHeapModel() heap.Model {
	if c.HeapModel == HeapType {
		return heap.NewTypeModel()
	}
	return heap.NewAllocationSiteModel()
}

// NewLogger returns a logger writing to w at the configured level. Colors are
// enabled when w is a terminal.
func (c Config) NewLogger(w io.Writer) *log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}

	colors := false
	if f, ok := w.(*os.File); ok {
		colors = term.IsTerminal(int(f.Fd()))
	}

	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		ForceColors:     colors,
		DisableColors:   !colors,
	})
	return logger
}
