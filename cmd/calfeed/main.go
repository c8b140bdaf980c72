package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calfeed/internal/config"
	"calfeed/internal/feed"
	"calfeed/internal/ics"
	appLog "calfeed/internal/log"
	"calfeed/internal/model"
	"calfeed/internal/web"
)

type flagConfig struct {
	configPath string
	url        string
	start      string
	end        string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	// One-shot demonstration mode: fetch one calendar, expand the given
	// window and print the normalized records as JSON.
	if flags.url != "" {
		if err := runOnce(flags); err != nil {
			appLog.Error("one-shot run failed", err, "url", flags.url)
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(flags); err != nil {
		appLog.Error("daemon failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calfeed/config.yaml", "Path to config file (daemon mode)")
	flag.StringVar(&cfg.url, "url", "", "ICS URL for a one-shot run (prints records as JSON and exits)")
	flag.StringVar(&cfg.start, "start", "", "Window start date, 2006-01-02 (one-shot mode; default today)")
	flag.StringVar(&cfg.end, "end", "", "Window end date, exclusive (one-shot mode; default start+30d)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

func runOnce(flags flagConfig) error {
	win, err := windowFromFlags(flags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fetcher := ics.NewFetcher("")
	res, err := fetcher.FetchOne(ctx, ics.Source{ID: "cli", URL: flags.url})
	if err != nil {
		return err
	}

	doc, err := ics.Parse(res.Body)
	if err != nil {
		return err
	}

	records, err := ics.ExpandAndNormalize(doc, win)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func windowFromFlags(flags flagConfig) (ics.Window, error) {
	start := model.DateOf(time.Now())
	if flags.start != "" {
		d, err := model.ParseDate(flags.start)
		if err != nil {
			return ics.Window{}, fmt.Errorf("invalid -start: %w", err)
		}
		start = d
	}

	end := start.AddDays(30)
	if flags.end != "" {
		d, err := model.ParseDate(flags.end)
		if err != nil {
			return ics.Window{}, fmt.Errorf("invalid -end: %w", err)
		}
		end = d
	}

	return ics.Window{Start: start, End: end}, nil
}

func runDaemon(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	appLog.Info("calfeed starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"source_count", len(conf.Sources),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	server := web.NewServer(conf)
	service, err := feed.New(conf, server)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	err = service.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	appLog.Info("calfeed exiting")
	return err
}
