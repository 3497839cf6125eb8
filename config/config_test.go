package config

import (
	"bytes"
	"testing"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/heap"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/src-d/go-billy.v4/memfs"
	"gopkg.in/src-d/go-billy.v4/util"
)

func TestLoad(t *testing.T) {
	fs := memfs.New()

	t.Run("Defaults", func(t *testing.T) {
		require.NoError(t, util.WriteFile(fs, "empty.yaml", []byte("{}\n"), 0644))
		cfg, err := Load(fs, "empty.yaml")
		require.NoError(t, err)
		assert.Equal(t, NewDefault().Options, cfg.Options)
	})

	t.Run("Options", func(t *testing.T) {
		require.NoError(t, util.WriteFile(fs, "conf/andersen.yaml", []byte(`
log-level: debug
worklist-order: lifo
heap-model: type
report-format: markdown
reports-dir: out
dump-points-to: true
max-parallel: 2
`), 0644))

		cfg, err := Load(fs, "conf/andersen.yaml")
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "out", cfg.ReportsDir)

		order, err := cfg.Order()
		require.NoError(t, err)
		assert.Equal(t, andersen.LIFO, order)
		assert.IsType(t, &heap.TypeModel{}, cfg.NewHeapModel())
		assert.Equal(t, FormatMarkdown, cfg.ReportFormat)
		assert.True(t, cfg.DumpPointsTo)
		assert.True(t, cfg.DumpCallGraph, "unset options keep their default")
		assert.Equal(t, 2, cfg.MaxParallel)

		assert.Equal(t, "conf/out", cfg.RelPath(cfg.ReportsDir))
		fi, err := fs.Stat("conf/out")
		require.NoError(t, err, "reports directory is created")
		assert.True(t, fi.IsDir())

		assert.Equal(t, log.DebugLevel, cfg.NewLogger(&bytes.Buffer{}).Level)
	})

	t.Run("Invalid", func(t *testing.T) {
		for name, src := range map[string]string{
			"LogLevel":    "log-level: loud",
			"Order":       "worklist-order: random",
			"HeapModel":   "heap-model: cfa",
			"Format":      "report-format: pdf",
			"MaxParallel": "max-parallel: 0",
			"Yaml":        "log-level: [",
		} {
			t.Run(name, func(t *testing.T) {
				require.NoError(t, util.WriteFile(fs, "bad.yaml", []byte(src), 0644))
				_, err := Load(fs, "bad.yaml")
				assert.Error(t, err)
			})
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(fs, "nope.yaml")
		assert.ErrorContains(t, err, "could not read config file")
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefault()
	logger := cfg.NewLogger(&buf)

	logger.Debug("hidden")
	logger.WithField("methods", 3).Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "methods=3")
	assert.NotContains(t, buf.String(), "\x1b[", "no colors when not writing to a terminal")
}
