// Command irum finds Korean names for English names and keeps a personal
// list of the ones you like.
//
// With no mode flag it starts the interactive shell. -list, -convert and
// -remote are scripting modes that print to stdout and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/MrWong99/irum/internal/app"
	"github.com/MrWong99/irum/internal/config"
	"github.com/MrWong99/irum/internal/identity"
	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/internal/romanize"
	"github.com/MrWong99/irum/internal/store"
	"github.com/MrWong99/irum/internal/tui"
	converthttp "github.com/MrWong99/irum/pkg/provider/convert/httpapi"
	historyhttp "github.com/MrWong99/irum/pkg/provider/history/httpapi"
	"github.com/MrWong99/irum/pkg/types"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "irum.yaml", "path to the YAML configuration file (optional)")
	list := flag.Bool("list", false, "print the saved names and exit")
	convertName := flag.String("convert", "", "print the candidates for `NAME` and exit")
	remote := flag.Bool("remote", false, "print the remote history of this installation and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		return 1
	}
	interactive := !*list && *convertName == "" && !*remote

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel.SlogLevel())
	logger, closeLog, err := newLogger(cfg, interactive, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("irum starting",
		"version", version,
		"config", *configPath,
		"base_url", cfg.Service.BaseURL,
		"store", cfg.Store.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Scripting modes ───────────────────────────────────────────────────────
	switch {
	case *convertName != "":
		return printErr(runConvert(ctx, cfg, *convertName, os.Stdout))
	case *list:
		return printErr(runList(ctx, cfg, os.Stdout))
	case *remote:
		return printErr(runRemote(ctx, cfg, os.Stdout))
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, nil,
		app.WithMetrics(observe.DefaultMetrics()),
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithConfigWatch(*configPath, level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		return 1
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- application.Run(runCtx) }()

	// ── Interactive shell ─────────────────────────────────────────────────────
	code := 0
	prog := tea.NewProgram(tui.NewModel(ctx, application.Controller()),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Error("shell error", "err", err)
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	cancelRun()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("diagnostics error", "err", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	slog.Info("goodbye")
	return code
}

// ── Scripting modes ───────────────────────────────────────────────────────────

// runConvert prints the candidates for name. It does not read or write the
// local store, so no device id is sent.
func runConvert(ctx context.Context, cfg *config.Config, name string, w io.Writer) error {
	p, err := converthttp.New(cfg.Service.BaseURL, converthttp.WithTimeout(cfg.Service.Timeout))
	if err != nil {
		return err
	}
	cands, err := p.Convert(ctx, name)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		fmt.Fprintln(w, "no candidates")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROMANIZED\tMEANING\tTREND")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\n", c.LocalizedName, romanize.Hint(c.LocalizedName), c.Meaning, c.EraScore)
	}
	return tw.Flush()
}

// runList prints the locally saved names, newest first.
func runList(ctx context.Context, cfg *config.Config, w io.Writer) error {
	backend, err := config.DefaultRegistry().CreateBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	return printSaved(w, store.NewLocal(backend).Load(ctx), time.Now())
}

func printSaved(w io.Writer, saved types.SavedList, now time.Time) error {
	if len(saved) == 0 {
		fmt.Fprintln(w, "no saved names")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENGLISH\tNAME\tROMANIZED\tMEANING\tSAVED")
	for _, e := range saved {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.EnglishName, e.LocalizedName, romanize.Hint(e.LocalizedName), e.Meaning,
			humanize.RelTime(e.SavedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

// runRemote prints the remote history scoped to this installation's device
// id. Unlike the best-effort notifications, failures are reported.
func runRemote(ctx context.Context, cfg *config.Config, w io.Writer) error {
	backend, err := config.DefaultRegistry().CreateBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	id, err := identity.DeviceID(ctx, backend)
	if err != nil {
		return err
	}
	p, err := historyhttp.New(cfg.Service.BaseURL,
		historyhttp.WithTimeout(cfg.History.Timeout),
		historyhttp.WithUserID(id),
	)
	if err != nil {
		return err
	}
	records, err := p.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "no remote history")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGLISH\tNAME\tSAVED")
	for _, r := range records {
		saved := "-"
		if !r.SavedAt.IsZero() {
			saved = humanize.RelTime(r.SavedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.EnglishName, r.LocalizedName, saved)
	}
	return tw.Flush()
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the text logger. The shell owns the terminal, so in
// interactive mode logs go to a file (cfg.LogFile, or irum.log in the data
// directory). Scripting modes log to stderr unless a log file is configured.
func newLogger(cfg *config.Config, interactive bool, level *slog.LevelVar) (*slog.Logger, func(), error) {
	path := cfg.LogFile
	if path == "" && interactive {
		path = filepath.Join(cfg.Store.DataDir, "irum.log")
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func printErr(err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "irum: %v\n", err)
		return 1
	}
	return 0
}
