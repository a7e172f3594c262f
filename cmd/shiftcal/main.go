package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"shiftcal/internal/blobstore"
	"shiftcal/internal/config"
	"shiftcal/internal/convert"
	"shiftcal/internal/fetch"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool

	// One-shot conversion mode.
	file     string
	name     string
	timezone string
	out      string
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	// -file switches to one-shot conversion; no server, no config file.
	if flags.file != "" || flags.name != "" {
		os.Exit(runConvert(flags))
	}

	appLog.Info("shiftcal starting", "version", "0.1.0-dev")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"data_dir", conf.DataDir,
		"cleanup_cron", conf.CleanupCron,
		"retention_hours", conf.RetentionHours,
		"max_upload_bytes", conf.MaxUploadBytes,
		"basic_auth", conf.BasicAuth != nil,
	)

	store, err := blobstore.Open(conf.DataDir)
	if err != nil {
		appLog.Error("failed to open upload store", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}
	defer store.Close()

	server := web.NewServer(conf, store, fetch.NewClient(conf.FetchTimeout(), conf.MaxUploadBytes))

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Upload janitor: sweep stored spreadsheets past the retention window.
	if conf.CleanupCron != "" {
		c := cron.New()
		_, err := c.AddFunc(conf.CleanupCron, func() {
			cutoff := time.Now().Add(-conf.RetentionDuration())
			n, err := store.Sweep(cutoff)
			if err != nil {
				appLog.Error("upload sweep failed", err)
				return
			}
			if n > 0 {
				appLog.Info("upload sweep done", "removed", n)
			}
		})
		if err != nil {
			appLog.Error("invalid cleanup_cron, janitor disabled", err, "cleanup_cron", conf.CleanupCron)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("graceful shutdown failed", err)
		}
	}

	appLog.Info("shiftcal exiting")
}

// runConvert is the one-shot CLI mode: read a local spreadsheet, extract
// one person's shifts and write the calendar to -out.
func runConvert(flags flagConfig) int {
	if flags.file == "" || flags.name == "" {
		appLog.Error("one-shot conversion needs both -file and -name", errors.New("missing flag"))
		return 2
	}

	tz := flags.timezone
	if tz == "" {
		tz = config.DefaultConfig().Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		appLog.Error("unknown timezone", err, "timezone", tz)
		return 2
	}

	data, err := os.ReadFile(flags.file)
	if err != nil {
		appLog.Error("failed to read spreadsheet", err, "file", flags.file)
		return 1
	}

	res, err := convert.Convert(data, flags.name, convert.Options{
		Now:      time.Now(),
		Location: loc,
	})
	if err != nil {
		appLog.Error("conversion failed", err, "file", flags.file, "name", flags.name)
		return 1
	}
	for _, sk := range res.Skipped {
		appLog.Info("skipped", "detail", sk.String())
	}

	// The calendar goes to stdout by default; logs stay on stderr.
	if flags.out == "" || flags.out == "-" {
		if _, err := os.Stdout.Write(res.ICS); err != nil {
			appLog.Error("failed to write calendar", err)
			return 1
		}
	} else if err := os.WriteFile(flags.out, res.ICS, 0o644); err != nil {
		appLog.Error("failed to write calendar", err, "out", flags.out)
		return 1
	}

	appLog.Info("calendar written", "events", len(res.Events), "skipped", len(res.Skipped))
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/shiftcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Force debug logging")
	flag.StringVar(&cfg.file, "file", "", "Convert a local spreadsheet and exit (requires -name)")
	flag.StringVar(&cfg.name, "name", "", "Person to extract shifts for (with -file)")
	flag.StringVar(&cfg.timezone, "timezone", "", "IANA timezone for -file mode (default Australia/Sydney)")
	flag.StringVar(&cfg.out, "out", "-", "Output path for -file mode; - writes to stdout")

	flag.Parse()

	return cfg
}
