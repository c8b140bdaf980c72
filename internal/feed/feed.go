package feed

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"calfeed/internal/config"
	"calfeed/internal/ics"
	appLog "calfeed/internal/log"
	"calfeed/internal/model"
)

// Sink receives the normalized records produced by a refresh cycle, one
// batch per source. Implementations decide what "downstream" means: an
// HTTP cache, a scheduler queue, stdout.
type Sink interface {
	Publish(ctx context.Context, sourceID string, records []model.Record) error
}

// Service drives the periodic fetch -> parse -> expand -> normalize cycle
// for every configured source and hands the results to a Sink. The core
// pipeline stays fail-fast per source; daemon-level policy (skip the
// source, wait for the next tick) lives here.
type Service struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	parser  ics.Parser
	sink    Sink
	loc     *time.Location
}

// New builds a Service from cfg, resolving the configured timezone.
func New(cfg *config.Config, sink Sink) (*Service, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		loc = l
	}
	return &Service{
		cfg:     cfg,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		parser:  ics.Parser{Location: loc},
		sink:    sink,
		loc:     loc,
	}, nil
}

// Window returns the expansion window [today, today+HorizonDays) relative
// to now in the service's zone.
func (s *Service) Window(now time.Time) ics.Window {
	start := model.DateOf(now.In(s.loc))
	return ics.Window{Start: start, End: start.AddDays(s.cfg.HorizonDays)}
}

// Process runs the core pipeline over one already-fetched body. It is a
// pure function of its inputs and safe to call concurrently.
func (s *Service) Process(body []byte, win ics.Window) ([]model.Record, error) {
	doc, err := s.parser.Parse(body)
	if err != nil {
		return nil, err
	}
	return ics.ExpandAndNormalize(doc, win)
}

// RefreshAll fetches and processes every configured source. One failing
// source does not stop the others; the first error is returned after all
// sources were attempted.
func (s *Service) RefreshAll(ctx context.Context) error {
	win := s.Window(time.Now())

	var firstErr error
	for _, sc := range s.cfg.Sources {
		if sc.URL == "" {
			continue
		}
		src := ics.Source{ID: sourceID(sc), URL: sc.URL}
		if err := s.refreshSource(ctx, src, win); err != nil {
			appLog.Error("feed: source refresh failed", err, "id", src.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Service) refreshSource(ctx context.Context, src ics.Source, win ics.Window) error {
	res, err := s.fetcher.FetchOne(ctx, src)
	if err != nil {
		return err
	}

	records, err := s.Process(res.Body, win)
	if err != nil {
		return err
	}

	appLog.Info("feed: source refreshed",
		"id", src.ID,
		"records", len(records),
		"from_cache", res.FromCache,
		"window_start", win.Start,
		"window_end", win.End,
	)
	return s.sink.Publish(ctx, src.ID, records)
}

// Run performs an initial refresh and then follows the configured cron
// schedule until ctx is canceled. A failing cycle is logged and retried
// on the next tick.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RefreshAll(ctx); err != nil {
		appLog.Error("feed: initial refresh failed", err)
	}

	c := cron.New()
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		if err := s.RefreshAll(ctx); err != nil {
			appLog.Error("feed: scheduled refresh failed", err)
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()

	// Wait for an in-flight job before returning.
	<-c.Stop().Done()
	return nil
}

func sourceID(sc config.SourceConfig) string {
	switch {
	case sc.ID != "":
		return sc.ID
	case sc.Name != "":
		return sc.Name
	default:
		return sc.URL
	}
}
