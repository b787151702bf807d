// Package config implements the ambient configuration layer
// (SPEC_FULL.md §6.1): a plain struct populated from CLI flags via the
// standard flag package — no ecosystem CLI framework appears anywhere
// in the example pack's actual code, only in unrelated go.mod
// manifests never exercised by code we read, so stdlib flag is the
// grounded choice here, not a gap.
package config

import (
	"flag"
	"fmt"
	"runtime"
)

// Subcommand is one of the spec's top-level verbs.
type Subcommand string

const (
	Run     Subcommand = "run"
	Bundle  Subcommand = "bundle"
	Compile Subcommand = "compile"
	Test    Subcommand = "test"
	Repl    Subcommand = "repl"
	Upgrade Subcommand = "upgrade"
)

// Config holds every global option from spec.md §6 plus run's
// --watch, populated once per process invocation.
type Config struct {
	Subcommand Subcommand
	Entry      string // script/entry argument, empty for repl

	Reload         bool
	Seed           int64
	HasSeed        bool
	EnvFile        string
	ImportMap      string
	ThreadpoolSize int
	ExposeGC       bool

	Inspect      bool
	InspectBreak bool
	InspectAddr  string

	Watch      bool
	WatchPaths string
}

// DefaultInspectAddr is the address --inspect/--inspect-brk bind to
// when given with no explicit ADDR, per spec.md §6.
const DefaultInspectAddr = "127.0.0.1:9229"

// ArgError reports a CLI usage mistake; cmd/dune maps it to exit code 2.
type ArgError struct {
	Message string
}

func (e *ArgError) Error() string { return e.Message }

// Parse parses args (excluding the program name) into a Config. args[0]
// must be one of the recognized subcommands.
func Parse(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, &ArgError{Message: "expected a subcommand: run, bundle, compile, test, repl, upgrade"}
	}

	sub := Subcommand(args[0])
	switch sub {
	case Run, Bundle, Compile, Test, Repl, Upgrade:
	default:
		return nil, &ArgError{Message: fmt.Sprintf("unknown subcommand %q", args[0])}
	}

	fs := flag.NewFlagSet(string(sub), flag.ContinueOnError)
	cfg := &Config{Subcommand: sub, ThreadpoolSize: runtime.NumCPU()}

	fs.BoolVar(&cfg.Reload, "reload", false, "bypass the on-disk module cache")
	var seed int64
	fs.Int64Var(&seed, "seed", 0, "seed for any deterministic-random facility the runtime exposes")
	fs.StringVar(&cfg.EnvFile, "env-file", "", "load environment variables from this .env file")
	fs.StringVar(&cfg.ImportMap, "import-map", "import-map.json", "import map file")
	fs.IntVar(&cfg.ThreadpoolSize, "threadpool-size", cfg.ThreadpoolSize, "thread pool size for blocking work")
	fs.BoolVar(&cfg.ExposeGC, "expose-gc", false, "expose a gc() global")

	var inspect, inspectBreak inspectFlag
	fs.Var(&inspect, "inspect", "start the inspector, optionally at ADDR")
	fs.Var(&inspectBreak, "inspect-brk", "start the inspector and break before running, optionally at ADDR")

	if sub == Run {
		var watch watchFlag
		fs.Var(&watch, "watch", "restart on file change, optionally limited to PATHS")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, &ArgError{Message: err.Error()}
		}
		cfg.Watch = watch.set
		cfg.WatchPaths = watch.value
	} else if err := fs.Parse(args[1:]); err != nil {
		return nil, &ArgError{Message: err.Error()}
	}

	if seed != 0 {
		cfg.Seed, cfg.HasSeed = seed, true
	}

	cfg.Inspect, cfg.InspectAddr = inspect.set, inspect.value
	if inspectBreak.set {
		cfg.Inspect, cfg.InspectBreak, cfg.InspectAddr = true, true, inspectBreak.value
	}
	if cfg.Inspect && cfg.InspectAddr == "" {
		cfg.InspectAddr = DefaultInspectAddr
	}

	if sub != Repl && sub != Upgrade {
		if fs.NArg() < 1 {
			return nil, &ArgError{Message: fmt.Sprintf("%s requires an entry argument", sub)}
		}
		cfg.Entry = fs.Arg(0)
	} else if fs.NArg() > 0 {
		cfg.Entry = fs.Arg(0)
	}

	return cfg, nil
}

// inspectFlag implements flag.Value for "--inspect" / "--inspect[=ADDR]":
// present with no "=value" sets set=true and leaves value empty (the
// default address applies); present with "=value" captures value.
type inspectFlag struct {
	set   bool
	value string
}

func (f *inspectFlag) String() string { return f.value }

// Set receives the literal string "true" when the flag package expands
// a bare "--inspect" (no "=ADDR"), since inspectFlag reports itself as
// a bool flag; anything else is an explicit "--inspect=ADDR" value.
func (f *inspectFlag) Set(s string) error {
	f.set = true
	if s != "true" {
		f.value = s
	}
	return nil
}

// inspectFlag and flag.Value normally require "=" to supply a value for
// a non-bool flag; IsBoolFlag lets "--inspect" alone (no "=ADDR") parse
// as present-with-default, matching spec.md's "[=ADDR]" optional-value
// grammar.
func (f *inspectFlag) IsBoolFlag() bool { return true }

// watchFlag is the same optional-value shape as inspectFlag, for
// "--watch[=PATHS]".
type watchFlag struct {
	set   bool
	value string
}

func (f *watchFlag) String() string { return f.value }

// Set receives the literal string "true" for a bare "--watch" (see
// inspectFlag.Set).
func (f *watchFlag) Set(s string) error {
	f.set = true
	if s != "true" {
		f.value = s
	}
	return nil
}
func (f *watchFlag) IsBoolFlag() bool { return true }
