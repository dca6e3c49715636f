// Command netwatch drives the network status screen from the terminal. Lifecycle transitions and
// network samples are typed on stdin, so the screen can be exercised without a mobile host.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"golang.org/x/term"

	"github.com/getlantern/netwatch/config"
	"github.com/getlantern/netwatch/dispatch"
	"github.com/getlantern/netwatch/event"
	"github.com/getlantern/netwatch/internal"
	"github.com/getlantern/netwatch/lifecycle"
	"github.com/getlantern/netwatch/metrics"
	"github.com/getlantern/netwatch/network"
	"github.com/getlantern/netwatch/reporting"
	"github.com/getlantern/netwatch/screen"
	"github.com/getlantern/netwatch/source"
	"github.com/getlantern/netwatch/telemetry"
)

var version = "dev"

type args struct {
	Config      string   `arg:"-c,--config" help:"config file (JSON or YAML); defaults to $NETWATCH_CONFIG or the user config dir"`
	LogLevel    string   `arg:"--log-level" help:"override the configured log level (trace, debug, info, warn, error)"`
	Probe       bool     `arg:"--probe" help:"probe internet reachability while in the foreground"`
	Foreground  bool     `arg:"--foreground" help:"start with the screen in the foreground"`
	Only        []string `arg:"--only" help:"only show these connectivity statuses (wifi, mobile, offline)"`
	WriteConfig bool     `arg:"--write-config" help:"write the effective configuration to the config file and exit"`
}

func (args) Version() string {
	return "netwatch " + version
}

func (args) Description() string {
	return "Shows connectivity, WiFi signal level and access points while the screen is in the foreground.\n" +
		"Commands: " + commandHelp
}

func main() {
	var a args
	arg.MustParse(&a)
	if err := run(a); err != nil {
		log.Fatalf("Error running netwatch: %v\n", err)
	}
}

func run(a args) error {
	path := config.Path(a.Config)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	if a.Probe {
		cfg.Probe.Enabled = true
	}
	if a.WriteConfig {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(path, cfg); err != nil {
			return fmt.Errorf("could not write config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	}
	only, err := connectivityFilter(a.Only)
	if err != nil {
		return err
	}

	levelVar := new(slog.LevelVar)
	level, err := internal.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	levelVar.Set(level)

	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		fw := internal.NewFileWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		defer fw.Close()
		logOut = io.MultiWriter(os.Stderr, fw)
	}
	logger := internal.NewLogger(logOut, levelVar)
	slog.SetDefault(logger)
	slog.Info("Starting netwatch", "version", version, "config", path)

	if err := reporting.Init(cfg.SentryDSN, version); err != nil {
		slog.Error("Failed to initialize fault reporting", "error", err)
	}
	defer func() {
		if r := recover(); r != nil {
			reporting.PanicListener(fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
			panic(r)
		}
	}()

	ctx := context.Background()
	if err := telemetry.Init(ctx, cfg.Telemetry, telemetry.DefaultAttributes(version)); err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
	}
	defer telemetry.Close(ctx)

	stats, err := metrics.New(nil)
	if err != nil {
		return err
	}

	looper := dispatch.NewLooper(logger)
	pool := dispatch.NewPool(cfg.Workers, logger)
	defer pool.Stop(5 * time.Second)

	tagged := logger.With("tag", cfg.LogTag)
	reporter := reporting.NewReporter(nil, tagged)
	defer reporter.Flush(2 * time.Second)
	manager, err := lifecycle.New(lifecycle.Options{
		Scheduler:  pool,
		Foreground: looper,
		Logger:     logger,
		Tag:        cfg.LogTag,
		Reporter:   reporter,
		Stats:      stats,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	var internet source.Source[bool]
	if cfg.Probe.Enabled {
		if internet, err = probeSource(cfg.Probe, tagged); err != nil {
			return err
		}
	}

	monitor := network.NewMonitor(event.NewBus(), cfg.SignalLevels, nil, tagged)
	widgets := newTermWidgets(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	scr, err := screen.New(screen.Options{
		Manager:      manager,
		Monitor:      monitor,
		Widgets:      widgets,
		Internet:     internet,
		Connectivity: only,
		Logger:       tagged,
	})
	if err != nil {
		return err
	}

	watcher, err := config.Watch(path, logger, func(next *config.Config) {
		if a.LogLevel != "" {
			return
		}
		if level, err := internal.ParseLogLevel(next.LogLevel); err == nil && level != levelVar.Level() {
			slog.Info("Changing log level", "level", next.LogLevel)
			levelVar.Set(level)
		}
	})
	if err != nil {
		slog.Warn("Config changes will not be picked up", "error", err)
	} else {
		defer watcher.Close()
	}

	if a.Foreground {
		looper.Post(scr.OnForeground)
	}

	cmds := &commands{fg: looper, screen: scr, monitor: monitor, manager: manager, out: os.Stdout}
	go func() {
		if err := cmds.run(os.Stdin); err != nil {
			slog.Error("Reading commands", "error", err)
		}
		looper.Close()
	}()

	// Wait for a signal to gracefully shut down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		time.AfterFunc(15*time.Second, func() {
			log.Fatal("Failed to shut down in time, forcing exit.")
		})
		looper.Close()
	}()

	// Handlers run on this goroutine until the looper is closed.
	looper.Run()
	scr.OnBackground()
	fmt.Fprintln(os.Stdout)
	return nil
}

func connectivityFilter(names []string) (network.ConnectivityPredicate, error) {
	if len(names) == 0 {
		return nil, nil
	}
	statuses := make([]network.ConnectivityStatus, 0, len(names))
	for _, name := range names {
		status := network.ParseConnectivityStatus(name)
		if status == network.Unknown {
			return nil, fmt.Errorf("unknown connectivity status %q", name)
		}
		statuses = append(statuses, status)
	}
	return network.HasStatus(statuses...), nil
}

func probeSource(cfg config.Probe, logger *slog.Logger) (source.Source[bool], error) {
	var strategy network.Strategy
	switch cfg.Strategy {
	case config.StrategySocket:
		strategy = &network.SocketStrategy{Host: cfg.Host, Port: cfg.Port, Timeout: cfg.Timeout, Logger: logger}
	default:
		wg, err := network.NewWalledGardenStrategy(network.WalledGardenOptions{
			URL:            cfg.URL,
			ExpectedStatus: cfg.ExpectedStatus,
			Timeout:        cfg.Timeout,
			Retries:        cfg.Retries,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		strategy = wg
	}
	return network.Internet(strategy, cfg.InitialInterval, cfg.Interval), nil
}
