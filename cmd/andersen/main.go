// Command andersen runs the pointer analysis on programs described in YAML
// files, or on Go packages with -go, and prints a report per program.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime/pprof"
	"strings"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/config"
	"github.com/BarrensZeppelin/andersen/gofront"
	"github.com/BarrensZeppelin/andersen/ir"
	"github.com/BarrensZeppelin/andersen/irfile"
	"github.com/BarrensZeppelin/andersen/pkgutil"
	"github.com/BarrensZeppelin/andersen/report"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/osfs"
	"gopkg.in/src-d/go-billy.v4/util"
)

var (
	configFile = flag.String("config", "", "load options from the YAML `file`")
	format     = flag.String("format", "", "report format: text, markdown, html or dot")
	reportsDir = flag.String("o", "", "write reports to `dir` instead of standard output")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	debug      = flag.Bool("debug", false, "log at debug level")
	goMode     = flag.Bool("go", false, "arguments are Go package queries instead of program files")
	dir        = flag.String("dir", "", "alternative directory to run the go build tool in")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] program.yaml...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	fs := osfs.New("/")
	cfg, err := loadConfig(fs)
	if err != nil {
		log.Fatal(err)
	}
	logger := cfg.NewLogger(os.Stderr)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logger.Fatal("could not create CPU profile: ", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Fatal("Failed to close", f)
			}
		}()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	r := &runner{cfg: cfg, fs: fs, log: logger}
	if *goMode {
		err = r.runGo(flag.Args())
	} else {
		err = r.runFiles(flag.Args())
	}
	if err != nil {
		pprof.StopCPUProfile()
		logger.Fatal(err)
	}
}

// loadConfig reads the configuration file, if any, and applies the command
// line overrides.
func loadConfig(fs billy.Filesystem) (*config.Config, error) {
	cfg := config.NewDefault()
	if *configFile != "" {
		abs, err := filepath.Abs(*configFile)
		if err != nil {
			return nil, err
		}
		if cfg, err = config.Load(fs, abs); err != nil {
			return nil, err
		}
	}

	if *format != "" {
		cfg.ReportFormat = *format
	}
	if *reportsDir != "" {
		abs, err := filepath.Abs(*reportsDir)
		if err != nil {
			return nil, err
		}
		cfg.ReportsDir = abs
		if err := fs.MkdirAll(abs, 0750); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", abs, err)
		}
	}
	if *debug {
		cfg.LogLevel = log.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

type runner struct {
	cfg *config.Config
	fs  billy.Filesystem
	log *log.Logger
}

// runFiles analyses the program files concurrently. Reports printed to
// standard output keep the order of the arguments.
func (r *runner) runFiles(files []string) error {
	out := make([]bytes.Buffer, len(files))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxParallel)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			abs, err := filepath.Abs(file)
			if err != nil {
				return err
			}
			prog, err := irfile.Load(r.fs, abs)
			if err != nil {
				return err
			}
			return r.analyze(file, path.Base(file), prog, &out[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range out {
		if _, err := out[i].WriteTo(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) runGo(queries []string) error {
	pkgs, err := pkgutil.LoadPackagesWithConfig(&packages.Config{
		Mode: pkgutil.LoadMode,
		Dir:  *dir,
	}, queries...)
	if err != nil {
		return fmt.Errorf("loading packages failed: %w", err)
	}
	r.log.Infof("Loaded %d packages", len(pkgs))

	prog, mains, err := pkgutil.BuildSSA(pkgs)
	if err != nil {
		return err
	}
	r.log.Info("Built packages")

	lowered, err := gofront.Lower(prog, mains)
	if err != nil {
		return err
	}
	r.log.WithField("classes", len(lowered.IR.Classes())).Info("Lowered program")

	var buf bytes.Buffer
	if err := r.analyze(strings.Join(queries, " "), "go", lowered.IR, &buf); err != nil {
		return err
	}
	_, err = buf.WriteTo(os.Stdout)
	return err
}

// analyze runs the analysis on prog and writes its report either to w or to a
// file named after base in the reports directory.
func (r *runner) analyze(name, base string, prog *ir.Program, w *bytes.Buffer) error {
	order, err := r.cfg.Order()
	if err != nil {
		return err
	}

	res, err := andersen.Analyze(andersen.AnalysisConfig{
		Program: prog,
		Heap:    r.cfg.NewHeapModel(),
		Order:   order,
		Log:     r.log,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	opts := report.Options{
		Format:        report.Format(r.cfg.ReportFormat),
		Title:         name,
		DumpPointsTo:  r.cfg.DumpPointsTo,
		DumpCallGraph: r.cfg.DumpCallGraph,
	}
	if r.cfg.ReportsDir == "" {
		return report.Write(w, res, opts)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, res, opts); err != nil {
		return err
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	target := path.Join(r.cfg.RelPath(r.cfg.ReportsDir), base+opts.Format.Extension())
	if err := util.WriteFile(r.fs, target, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}
	r.log.WithField("report", target).Info("Wrote report")
	return nil
}
