// Package app assembles a calendar registry from configuration: it creates
// the configured calendars and imports their ICS sources.
package app

import (
	"context"
	"fmt"
	"time"

	"vcal/internal/calendar"
	"vcal/internal/config"
	"vcal/internal/ics"
	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/tz"
)

// Report summarizes one Build. Source failures do not fail the build; they
// are collected in SourceErrors.
type Report struct {
	Imports      map[string]ics.ImportResult
	SourceErrors []error
}

// Builder owns the long-lived pieces shared by successive builds.
type Builder struct {
	zones   *tz.Service
	fetcher *ics.Fetcher
	now     func() time.Time
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		zones:   tz.NewService(),
		fetcher: ics.NewFetcher(cfg.CacheDir, nil),
		now:     time.Now,
	}
}

// Build creates a fresh registry for cfg. Rules that cannot be stored as
// a series are expanded HorizonDays either side of today in each
// calendar's zone.
func (b *Builder) Build(ctx context.Context, cfg *config.Config) (*calendar.Registry, Report, error) {
	reg := calendar.NewRegistry(b.zones, calendar.WithMaxOccurrences(cfg.MaxOccurrences))
	report := Report{Imports: make(map[string]ics.ImportResult, len(cfg.Calendars))}

	for _, cc := range cfg.Calendars {
		c, err := reg.Create(cc.Name, cc.Timezone)
		if err != nil {
			return nil, report, fmt.Errorf("calendar %q: %w", cc.Name, err)
		}
		if len(cc.ICS) == 0 {
			continue
		}

		sources := make([]ics.Source, 0, len(cc.ICS))
		for _, s := range cc.ICS {
			sources = append(sources, ics.Source{ID: s.ID, URL: s.URL, Path: s.Path})
		}
		fetched, errs := b.fetcher.FetchAll(ctx, sources)
		report.SourceErrors = append(report.SourceErrors, errs...)

		var parsed []ics.ParsedEvent
		for _, res := range fetched {
			evs, err := ics.ParseICS(res.Source, res.Body, c.Location())
			if err != nil {
				report.SourceErrors = append(report.SourceErrors, fmt.Errorf("source %s: %w", res.Source.ID, err))
				continue
			}
			parsed = append(parsed, evs...)
		}

		today := model.StartOfDay(b.now().In(c.Location()))
		res, err := ics.Import(c, parsed, ics.ImportOptions{
			From:           today.AddDate(0, 0, -cfg.HorizonDays),
			To:             today.AddDate(0, 0, cfg.HorizonDays),
			MaxOccurrences: cfg.MaxOccurrences,
		})
		if err != nil {
			return nil, report, fmt.Errorf("calendar %q: %w", cc.Name, err)
		}
		report.Imports[cc.Name] = res
	}

	if cfg.Active != "" && len(cfg.Calendars) > 0 {
		if err := reg.SetActive(cfg.Active); err != nil {
			return nil, report, err
		}
	}

	appLog.Info("registry built", "calendars", len(cfg.Calendars), "source_errors", len(report.SourceErrors))
	return reg, report, nil
}
