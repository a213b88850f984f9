package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"vcal/internal/calendar"
	"vcal/internal/copier"
	"vcal/internal/export"
	"vcal/internal/ics"
	appLog "vcal/internal/log"
	"vcal/internal/model"
	"vcal/internal/web"
)

func newCalendarsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List calendars with their zones and event counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, reg, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			active, _ := reg.Active()
			out := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				c, _ := reg.Get(name)
				marker := " "
				if c == active {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-20s %-24s %d event(s), %d series\n", marker, c.Name(), c.Timezone(), c.Len(), len(c.Series()))
			}
			return nil
		},
	}
}

func newEventsCmd(flags *rootFlags) *cobra.Command {
	var name, date, from, to string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the events of a date or an inclusive date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, reg, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			c, err := pick(reg, name)
			if err != nil {
				return err
			}

			var events []model.Event
			switch {
			case date != "":
				day, err := parseDate(date, c.Location())
				if err != nil {
					return err
				}
				events = c.EventsOnDate(day)
			case from != "" && to != "":
				first, err := parseDate(from, c.Location())
				if err != nil {
					return err
				}
				last, err := parseDate(to, c.Location())
				if err != nil {
					return err
				}
				if events, err = c.EventsInRange(first, last); err != nil {
					return err
				}
			default:
				return errors.New("either --date or both --from and --to are required")
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "calendar", "", "Calendar name (default: active)")
	cmd.Flags().StringVar(&date, "date", "", "Date, YYYY-MM-DD")
	cmd.Flags().StringVar(&from, "from", "", "First date of the range, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last date of the range, YYYY-MM-DD")
	cmd.MarkFlagsMutuallyExclusive("date", "from")
	return cmd
}

func newBusyCmd(flags *rootFlags) *cobra.Command {
	var name, at string
	cmd := &cobra.Command{
		Use:   "busy",
		Short: "Report whether the calendar has an event at a moment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, reg, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			c, err := pick(reg, name)
			if err != nil {
				return err
			}
			t, err := parseDateTime(at, c.Location())
			if err != nil {
				return err
			}
			state := "available"
			if c.IsBusy(t) {
				state = "busy"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s\n", state, t.Format(model.DateTimeLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "calendar", "", "Calendar name (default: active)")
	cmd.Flags().StringVar(&at, "at", "", "Moment on the calendar's wall clock, YYYY-MM-DDTHH:MM")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var name, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every event of a calendar as CSV or ICS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, reg, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			c, err := pick(reg, name)
			if err != nil {
				return err
			}
			return writeExport(cmd.OutOrStdout(), c, format, out)
		},
	}
	cmd.Flags().StringVar(&name, "calendar", "", "Calendar name (default: active)")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or ics")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")
	return cmd
}

type copyFlags struct {
	from, to         string
	date, targetDate string
	untilDate        string
	subject, start   string
	targetStart      string
	out, outFormat   string
}

func newCopyCmd(flags *rootFlags) *cobra.Command {
	cf := &copyFlags{}
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy events into another calendar, translating times between zones",
		Long: `Copy one event (--subject, --start, --target-start), the events of a date
(--date, --target-date) or of an inclusive range (--date, --until-date,
--target-date) from the source calendar into --to-calendar. Conflicting
copies are skipped and counted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, reg, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			res, err := runCopy(reg, cf)
			if err != nil && !errors.Is(err, model.ErrConflictingEvent) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			if cf.out != "" {
				dst, err := reg.Get(cf.to)
				if err != nil {
					return err
				}
				if err := writeExport(cmd.OutOrStdout(), dst, cf.outFormat, cf.out); err != nil {
					return err
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cf.from, "from-calendar", "", "Source calendar (default: active)")
	cmd.Flags().StringVar(&cf.to, "to-calendar", "", "Target calendar")
	cmd.Flags().StringVar(&cf.date, "date", "", "Source date, YYYY-MM-DD")
	cmd.Flags().StringVar(&cf.untilDate, "until-date", "", "Last source date of a range copy, YYYY-MM-DD")
	cmd.Flags().StringVar(&cf.targetDate, "target-date", "", "Date the first copied day lands on, YYYY-MM-DD")
	cmd.Flags().StringVar(&cf.subject, "subject", "", "Subject of a single event to copy")
	cmd.Flags().StringVar(&cf.start, "start", "", "Start of that event, YYYY-MM-DDTHH:MM")
	cmd.Flags().StringVar(&cf.targetStart, "target-start", "", "Start of the copy on the target's wall clock, YYYY-MM-DDTHH:MM")
	cmd.Flags().StringVar(&cf.out, "out", "", "Write the target calendar to this file after copying")
	cmd.Flags().StringVar(&cf.outFormat, "out-format", "", "csv or ics (default: from --out extension)")
	_ = cmd.MarkFlagRequired("to-calendar")
	cmd.MarkFlagsMutuallyExclusive("subject", "date")
	return cmd
}

func runCopy(reg *calendar.Registry, cf *copyFlags) (copier.Result, error) {
	if cf.from != "" {
		if err := reg.SetActive(cf.from); err != nil {
			return copier.Result{Target: cf.to}, err
		}
	}
	src, err := reg.Active()
	if err != nil {
		return copier.Result{Target: cf.to}, err
	}
	dst, err := reg.Get(cf.to)
	if err != nil {
		return copier.Result{Target: cf.to}, err
	}
	engine := copier.New(reg)

	switch {
	case cf.subject != "":
		start, err := parseDateTime(cf.start, src.Location())
		if err != nil {
			return copier.Result{Target: cf.to}, err
		}
		targetStart, err := parseDateTime(cf.targetStart, dst.Location())
		if err != nil {
			return copier.Result{Target: cf.to}, err
		}
		return engine.CopyEvent(cf.subject, start, cf.to, targetStart)
	case cf.date != "":
		day, err := parseDate(cf.date, src.Location())
		if err != nil {
			return copier.Result{Target: cf.to}, err
		}
		target, err := parseDate(cf.targetDate, dst.Location())
		if err != nil {
			return copier.Result{Target: cf.to}, err
		}
		if cf.untilDate == "" {
			return engine.CopyEventsOnDate(day, cf.to, target)
		}
		last, err := parseDate(cf.untilDate, src.Location())
		if err != nil {
			return copier.Result{Target: cf.to}, err
		}
		return engine.CopyEventsInRange(day, last, cf.to, target)
	default:
		return copier.Result{Target: cf.to}, errors.New("either --subject or --date is required")
	}
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and re-import sources on the refresh schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, builder, reg, err := load(ctx, flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"active", cfg.Active,
				"refresh", cfg.RefreshCron,
				"horizon_days", cfg.HorizonDays,
				"calendars", len(cfg.Calendars),
			)

			srv := web.NewServer(cfg, reg)

			loc, err := reg.Zones().Load(cfg.Timezone)
			if err != nil {
				return err
			}
			sched := cron.New(cron.WithLocation(loc))
			if _, err := sched.AddFunc(cfg.RefreshCron, func() {
				fresh, report, err := builder.Build(ctx, cfg)
				if err != nil {
					appLog.Error("refresh failed; keeping previous registry", err)
					return
				}
				for _, e := range report.SourceErrors {
					appLog.Warn("source skipped", "err", e.Error())
				}
				srv.Swap(fresh)
			}); err != nil {
				return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
			}
			sched.Start()
			defer func() { <-sched.Stop().Done() }()

			httpSrv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "version", version)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				appLog.Info("signal received, shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

func writeExport(stdout io.Writer, c *calendar.Calendar, format, path string) error {
	if format == "" {
		format = "csv"
		if strings.EqualFold(filepath.Ext(path), ".ics") {
			format = "ics"
		}
	}

	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	events := c.AllEvents()
	var err error
	switch format {
	case "csv":
		err = export.WriteCSV(w, events)
	case "ics":
		err = ics.WriteCalendar(w, c.Name(), c.Location(), events, time.Now())
	default:
		return fmt.Errorf("unknown format %q (want csv or ics)", format)
	}
	if err != nil {
		return err
	}
	if path != "" {
		appLog.Info("calendar exported", "calendar", c.Name(), "format", format, "path", path, "events", len(events))
	}
	return nil
}

func printEvents(w io.Writer, events []model.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	for _, ev := range events {
		fmt.Fprintln(w, ev.String())
	}
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", model.ErrInvalidEvent, s)
	}
	return t, nil
}

func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q must be YYYY-MM-DDTHH:MM", model.ErrInvalidEvent, s)
	}
	return t, nil
}
