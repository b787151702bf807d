// Command dune is the thin CLI entry point (SPEC_FULL.md §6.3): an
// external collaborator over the Runtime Core, not core scope itself.
// `run` fully wires resolve → load → transpile → module graph → the
// Runtime Core's tick sequence; the other subcommands parse their
// flags and report that they are not implemented in this build,
// matching spec.md §1's instruction that they are collaborators the
// core merely exposes a contract to.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dunerun/dune/internal/bindings"
	"github.com/dunerun/dune/internal/bindings/dns"
	"github.com/dunerun/dune/internal/bindings/fs"
	"github.com/dunerun/dune/internal/bindings/httpparser"
	"github.com/dunerun/dune/internal/bindings/net"
	"github.com/dunerun/dune/internal/bindings/nexttick"
	"github.com/dunerun/dune/internal/bindings/perfhooks"
	"github.com/dunerun/dune/internal/bindings/promise"
	"github.com/dunerun/dune/internal/bindings/signals"
	"github.com/dunerun/dune/internal/bindings/sqlite"
	"github.com/dunerun/dune/internal/bindings/stdio"
	"github.com/dunerun/dune/internal/bindings/timers"
	"github.com/dunerun/dune/internal/config"
	"github.com/dunerun/dune/internal/dotenv"
	"github.com/dunerun/dune/internal/importmap"
	"github.com/dunerun/dune/internal/inspector"
	"github.com/dunerun/dune/internal/loader"
	"github.com/dunerun/dune/internal/resolve"
	"github.com/dunerun/dune/internal/runtimecore"
	"github.com/dunerun/dune/internal/specifier"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	switch cfg.Subcommand {
	case config.Run:
		return runScript(cfg)
	default:
		fmt.Fprintf(os.Stderr, "%s: not implemented in this build\n", cfg.Subcommand)
		return 1
	}
}

func runScript(cfg *config.Config) int {
	if cfg.EnvFile != "" {
		if err := dotenv.Load(cfg.EnvFile); err != nil {
			log.Printf("dune: %v", err)
			return 1
		}
	}

	im := importmap.Empty()
	if data, err := os.ReadFile(cfg.ImportMap); err == nil {
		parsed, err := importmap.Parse(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dune: parsing import map %q: %v\n", cfg.ImportMap, err)
			return 1
		}
		im = parsed
	}

	entry, err := coerceEntry(cfg.Entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dune: %v\n", err)
		return 1
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	cacheDir = filepath.Join(cacheDir, "dune")

	l, err := loader.New(cacheDir, cfg.Reload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dune: %v\n", err)
		return 1
	}
	r := resolve.New(im)

	engine, err := newEngine(0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dune: creating %s engine: %v\n", engineName, err)
		return 1
	}

	core := runtimecore.New(r, l, engine, cfg.ThreadpoolSize)
	defer core.Close()

	reg := bindings.NewRegistry(engine)
	if err := installBindings(reg, core); err != nil {
		fmt.Fprintf(os.Stderr, "dune: installing bindings: %v\n", err)
		return 1
	}
	if err := reg.InstallUncaughtReporter(core); err != nil {
		fmt.Fprintf(os.Stderr, "dune: %v\n", err)
		return 1
	}
	if err := reg.Finish(); err != nil {
		fmt.Fprintf(os.Stderr, "dune: %v\n", err)
		return 1
	}

	if cfg.Inspect {
		srv := inspector.New(cfg.InspectAddr, entry.String(), core.Handle())
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "dune: %v\n", err)
			return 1
		}
		defer srv.Close()
		core.AttachInspector(srv, cfg.InspectBreak)
		log.Printf("dune: inspector listening on %s", cfg.InspectAddr)
	}

	return core.Run(entry)
}

// installBindings wires every process.binding(name) contract spec.md
// §6 names onto reg, sharing the one Core for its loop handle,
// pending-futures queue, and next-tick queue.
func installBindings(reg *bindings.Registry, core *runtimecore.Core) error {
	handle := core.Handle()
	queue := core.Queue

	if err := stdio.Install(reg); err != nil {
		return err
	}
	if err := timers.Install(reg, handle, queue); err != nil {
		return err
	}
	if err := signals.Install(reg, handle, queue); err != nil {
		return err
	}
	if err := perfhooks.Install(reg, core.TimeOrigin()); err != nil {
		return err
	}
	if err := promise.Install(reg, queue); err != nil {
		return err
	}
	if err := dns.Install(reg, queue, handle); err != nil {
		return err
	}
	if err := fs.Install(reg, queue, handle); err != nil {
		return err
	}
	if err := net.Install(reg, handle, queue); err != nil {
		return err
	}
	if err := httpparser.Install(reg); err != nil {
		return err
	}
	if err := sqlite.Install(reg); err != nil {
		return err
	}
	if err := nexttick.Install(reg, core); err != nil {
		return err
	}
	return nil
}

// coerceEntry turns a bare script argument into a canonical
// specifier, per spec.md §6: local scripts without a scheme are
// coerced to file:// absolute form, retrying with a "./" prefix if
// the first resolve fails.
func coerceEntry(arg string) (specifier.Specifier, error) {
	s := specifier.Specifier(arg)
	if s.Scheme() != "" {
		return s, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return specifier.FromFilePath(arg)
	}
	if _, err := os.Stat("./" + arg); err == nil {
		return specifier.FromFilePath("./" + arg)
	}
	return "", fmt.Errorf("entry script not found: %q", arg)
}
