// Package cli implements the matchgen command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/matchgen/internal/cache"
	"github.com/funvibe/matchgen/internal/config"
	"github.com/funvibe/matchgen/internal/decision"
	"github.com/funvibe/matchgen/internal/diagnostics"
	"github.com/funvibe/matchgen/internal/pipeline"
)

const usage = `Usage: matchgen <command> [flags]

Commands:
  build        lower every decision tree of the project to LLVM IR
  check        load and validate the project without lowering
  cache clean  remove every cached module
  version      print the matchgen version

Run 'matchgen <command> -h' for the flags of a command.
`

// errUsage marks a command line error whose message has already been
// printed, by the flag package or by the command itself.
var errUsage = errors.New("usage")

// app holds the streams of one invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	color   bool
	verbose bool
}

// Run executes the command line in os.Args and exits.
func Run() {
	os.Exit(Main(os.Args[1:], os.Stdout, os.Stderr))
}

// Main executes the command given by args and returns the exit status.
func Main(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, color: colorEnabled(stderr)}

	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(stderr, "Internal error: %v\n", r)
			fmt.Fprintln(stderr, "This is a bug. Please report it.")
			os.Exit(2)
		}
	}()

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "build":
		err = a.build(args[1:])
	case "check":
		err = a.check(args[1:])
	case "cache":
		err = a.cleanCache(args[1:])
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, "matchgen "+config.Version)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		a.errorf("%v", err)
		return 1
	}
}

// colorEnabled reports whether w is a terminal that should get coloured
// error output.
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if a.color {
		msg = "\x1b[31m" + msg + "\x1b[0m"
	}
	fmt.Fprintln(a.stderr, msg)
}

func (a *app) logf(format string, args ...interface{}) {
	if a.verbose {
		fmt.Fprintf(a.stderr, "[matchgen] "+format+"\n", args...)
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("matchgen "+name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// loadProject finds the project file from dir upwards and loads it.
func (a *app) loadProject(dir string) (*config.Project, error) {
	path, err := config.FindProject(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("%s not found in %s or any parent directory", config.ProjectFileNames[0], dir)
	}
	p, err := config.LoadProject(path)
	if err != nil {
		return nil, err
	}
	a.verbose = a.verbose || p.Verbose
	a.logf("project %s", path)
	return p, nil
}

// report prints every diagnostic and returns an error summarizing them.
func (a *app) report(errs []*diagnostics.DiagnosticError) error {
	for _, e := range errs {
		a.errorf("%s", e.Error())
	}
	if len(errs) == 1 {
		return errors.New("1 error")
	}
	return fmt.Errorf("%d errors", len(errs))
}

func (a *app) build(args []string) error {
	fs := a.flagSet("build")
	dir := fs.String("C", ".", "project directory")
	out := fs.String("o", "", "output file (overrides the project's output)")
	noCache := fs.Bool("no-cache", false, "do not read or write the artifact cache")
	fs.BoolVar(&a.verbose, "v", false, "print progress to stderr")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(a.stderr, "build: unexpected argument %q\n", fs.Arg(0))
		return errUsage
	}

	p, err := a.loadProject(*dir)
	if err != nil {
		return err
	}
	if *out != "" {
		abs, err := filepath.Abs(*out)
		if err != nil {
			return err
		}
		p.Output = abs
	}

	ctx := context.Background()
	pctx := pipeline.NewPipelineContext(ctx, p)
	if p.Cache != "" && !*noCache {
		c, err := cache.Open(ctx, p.CachePath())
		if err != nil {
			return err
		}
		defer c.Close()
		pctx.Cache = c
		a.logf("cache %s", c.Path())
	}

	pctx = pipeline.Build().Run(pctx)
	if pctx.Failed() {
		return a.report(pctx.Errors)
	}

	for _, t := range pctx.Trees {
		s := decision.Count(t.Root)
		a.logf("%s: %d switches, %d arms, %d functions, %d leaves, %d fails",
			t.Spec.Symbol, s.Switches, s.Cases, s.Functions, s.Leaves, s.Fails)
	}
	if pctx.CacheHit {
		a.logf("cache hit %s", pctx.Key)
	} else {
		a.logf("lowered %d functions", len(pctx.Functions))
	}
	fmt.Fprintf(a.stdout, "Built %s (%d trees, %d bytes)\n", p.OutputPath(), len(pctx.Trees), len(pctx.Output))
	return nil
}

func (a *app) check(args []string) error {
	fs := a.flagSet("check")
	dir := fs.String("C", ".", "project directory")
	fs.BoolVar(&a.verbose, "v", false, "print progress to stderr")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	p, err := a.loadProject(*dir)
	if err != nil {
		return err
	}
	pctx := pipeline.Check().Run(pipeline.NewPipelineContext(context.Background(), p))
	if pctx.Failed() {
		return a.report(pctx.Errors)
	}
	for _, t := range pctx.Trees {
		s := decision.Count(t.Root)
		fmt.Fprintf(a.stdout, "%s: ok (%d switches, %d leaves)\n", t.Spec.Symbol, s.Switches, s.Leaves)
	}
	return nil
}

func (a *app) cleanCache(args []string) error {
	if len(args) == 0 || args[0] != "clean" {
		fmt.Fprintln(a.stderr, "Usage: matchgen cache clean [-C dir]")
		return errUsage
	}
	fs := a.flagSet("cache clean")
	dir := fs.String("C", ".", "project directory")
	fs.BoolVar(&a.verbose, "v", false, "print progress to stderr")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	p, err := a.loadProject(*dir)
	if err != nil {
		return err
	}
	if p.Cache == "" {
		fmt.Fprintln(a.stdout, "Caching is not enabled for this project")
		return nil
	}
	ctx := context.Background()
	c, err := cache.Open(ctx, p.CachePath())
	if err != nil {
		return err
	}
	defer c.Close()
	n, err := c.Clean(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Removed %d cached modules\n", n)
	return nil
}
