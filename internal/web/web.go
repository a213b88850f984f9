package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"vcal/internal/calendar"
	"vcal/internal/config"
	"vcal/internal/export"
	"vcal/internal/ics"
	appLog "vcal/internal/log"
	"vcal/internal/model"
)

// Server exposes a read-only HTTP API over a calendar registry. The
// registry is replaced wholesale by Swap on refresh; handlers hold the
// read lock for the whole request so they never see a half-built one.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu      sync.RWMutex
	reg     *calendar.Registry
	builtAt time.Time
}

func NewServer(cfg *config.Config, reg *calendar.Registry) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		reg:     reg,
		builtAt: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Swap installs a freshly built registry.
func (s *Server) Swap(reg *calendar.Registry) {
	s.mu.Lock()
	s.reg = reg
	s.builtAt = time.Now()
	s.mu.Unlock()
	appLog.Info("registry swapped", "calendars", len(reg.Names()))
}

// Handler returns the mux, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every path except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="vcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/busy", s.handleBusy)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type calendarDTO struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Active   bool   `json:"active"`
	Events   int    `json:"events"`
	Series   int    `json:"series"`
}

type calendarsResponse struct {
	Calendars []calendarDTO `json:"calendars"`
	BuiltAt   time.Time     `json:"built_at"`
}

func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := ""
	if c, err := s.reg.Active(); err == nil {
		active = c.Name()
	}
	resp := calendarsResponse{Calendars: []calendarDTO{}, BuiltAt: s.builtAt}
	for _, name := range s.reg.Names() {
		c, err := s.reg.Get(name)
		if err != nil {
			continue
		}
		resp.Calendars = append(resp.Calendars, calendarDTO{
			Name:     c.Name(),
			Timezone: c.Timezone(),
			Active:   name == active,
			Events:   c.Len(),
			Series:   len(c.Series()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type eventDTO struct {
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Public      bool      `json:"public"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	SeriesID    string    `json:"series_id,omitempty"`
}

type eventsResponse struct {
	Calendar string     `json:"calendar"`
	Timezone string     `json:"timezone"`
	Events   []eventDTO `json:"events"`
}

// handleEvents lists events of one date or of an inclusive date range.
//
// GET /api/events?calendar=Work&date=2023-05-10
// GET /api/events?calendar=Work&from=2023-05-01&to=2023-05-31
//
// Dates are read in the calendar's zone; calendar defaults to the active one.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var events []model.Event
	switch {
	case q.Get("date") != "":
		day, err := time.ParseInLocation(model.DateLayout, q.Get("date"), c.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		events = c.EventsOnDate(day)
	case q.Get("from") != "" && q.Get("to") != "":
		from, err1 := time.ParseInLocation(model.DateLayout, q.Get("from"), c.Location())
		to, err2 := time.ParseInLocation(model.DateLayout, q.Get("to"), c.Location())
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
			return
		}
		var err error
		events, err = c.EventsInRange(from, to)
		if err != nil {
			writeModelError(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "either date or from and to are required")
		return
	}

	resp := eventsResponse{Calendar: c.Name(), Timezone: c.Timezone(), Events: make([]eventDTO, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, eventDTO{
			Subject:     ev.Subject,
			Description: ev.Description,
			Location:    ev.Location,
			Public:      ev.Public,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
			SeriesID:    ev.SeriesID,
		})
	}
	appLog.Debug("api events request", "calendar", c.Name(), "count", len(resp.Events))
	writeJSON(w, http.StatusOK, resp)
}

type busyResponse struct {
	Calendar string    `json:"calendar"`
	At       time.Time `json:"at"`
	Busy     bool      `json:"busy"`
}

// handleBusy answers GET /api/busy?calendar=Work&at=2023-05-10T14:30, with
// at read on the calendar's wall clock.
func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	at, err := time.ParseInLocation(model.DateTimeLayout, r.URL.Query().Get("at"), c.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "at must be YYYY-MM-DDTHH:MM")
		return
	}
	writeJSON(w, http.StatusOK, busyResponse{Calendar: c.Name(), At: at, Busy: c.IsBusy(at)})
}

// handleExport streams a whole calendar as CSV (default) or ICS.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events := c.AllEvents()

	var (
		buf bytes.Buffer
		err error
	)
	contentType := "text/csv; charset=utf-8"
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		err = export.WriteCSV(&buf, events)
	case "ics":
		contentType = "text/calendar; charset=utf-8"
		err = ics.WriteCalendar(&buf, c.Name(), c.Location(), events, time.Now())
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or ics")
		return
	}
	if err != nil {
		appLog.Error("api export failed", err, "calendar", c.Name())
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// lookup resolves the calendar query parameter, falling back to the active
// calendar, and writes the error response itself on failure.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*calendar.Calendar, bool) {
	var (
		c   *calendar.Calendar
		err error
	)
	if name := r.URL.Query().Get("calendar"); name != "" {
		c, err = s.reg.Get(name)
	} else {
		c, err = s.reg.Active()
	}
	if err != nil {
		writeModelError(w, err)
		return nil, false
	}
	return c, true
}

func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrCalendarNotFound), errors.Is(err, model.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidEvent), errors.Is(err, model.ErrInvalidTimezone),
		errors.Is(err, model.ErrInvalidCalendarName):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
