package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/scheduler"
)

// CheckControl runs on-demand checks and pauses monitors, serialized with
// scheduled checks. A nil TriggerCheck result means the monitor is unknown.
type CheckControl interface {
	TriggerCheck(ctx context.Context, id domain.MonitorID) (*probe.Result, error)
	SetActive(ctx context.Context, id domain.MonitorID, active bool) error
}

// StatsSource is optional; without it /metrics only reports monitor gauges.
type StatsSource interface {
	Stats() scheduler.Stats
}

type Server struct {
	Logger *zap.Logger
	Store  repo.Store
	Checks CheckControl
	Stats  StatsSource
	now    func() time.Time
}

func NewServer(l *zap.Logger, store repo.Store, checks CheckControl, stats StatsSource) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Logger: l,
		Store:  store,
		Checks: checks,
		Stats:  stats,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(pubRPM, pubBurst))
			r.Use(apimw.RequireAny(keys))
			r.Get("/monitors", s.handleListMonitors)
			r.Get("/monitors/{id}", s.handleGetMonitor)
			r.Get("/monitors/{id}/checks", s.handleListChecks)
			r.Get("/monitors/{id}/incidents", s.handleListIncidents)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(admRPM, admBurst))
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/monitors", s.handleCreateMonitor)
			r.Post("/monitors/{id}/check", s.handleTriggerCheck)
			r.Post("/monitors/{id}/pause", s.handleSetActive(false))
			r.Post("/monitors/{id}/resume", s.handleSetActive(true))
			r.Post("/monitors/{id}/alerts", s.handleAddAlert)
		})
	})

	return r
}

// ---- monitors ----

type createPayload struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	Method          string `json:"method"`
	ExpectedStatus  int    `json:"expected_status"`
	IntervalSeconds int    `json:"check_interval_seconds"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	Kind            string `json:"check_kind"`
}

func (s *Server) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var p createPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.URL) == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	u := normalizeHTTPURL(domain.NormalizeURL(p.URL))
	if !isValidHTTPURL(u) {
		writeError(w, http.StatusBadRequest, "url must be http(s)")
		return
	}

	m := &domain.Monitor{
		Name:            p.Name,
		URL:             u,
		Method:          p.Method,
		ExpectedStatus:  p.ExpectedStatus,
		IntervalSeconds: p.IntervalSeconds,
		TimeoutSeconds:  p.TimeoutSeconds,
		Kind:            domain.CheckKind(p.Kind),
		IsActive:        true,
		CreatedAt:       s.now(),
	}
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.Store.ListMonitors(r.Context())
	if err != nil {
		s.internal(w, "list_monitors_failed", err)
		return
	}
	for _, e := range existing {
		if normalizeHTTPURL(e.URL) == m.URL {
			writeError(w, http.StatusConflict, "monitor already exists")
			return
		}
	}

	if err := s.Store.CreateMonitor(r.Context(), m); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			writeError(w, http.StatusConflict, "monitor already exists")
			return
		}
		s.internal(w, "create_monitor_failed", err)
		return
	}
	s.Logger.Info("monitor_created",
		zap.String("monitor_id", string(m.ID)),
		zap.String("url", m.URL),
		zap.String("kind", string(m.Kind)),
	)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Store.ListMonitors(r.Context())
	if err != nil {
		s.internal(w, "list_monitors_failed", err)
		return
	}
	if ms == nil {
		ms = []domain.Monitor{}
	}
	writeJSON(w, http.StatusOK, ms)
}

type monitorDetail struct {
	Monitor          domain.Monitor `json:"monitor"`
	WindowHours      int            `json:"window_hours"`
	TotalChecks      int            `json:"total_checks"`
	UpChecks         int            `json:"up_checks"`
	UptimePercentage float64        `json:"uptime_percentage"`
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMonitor(w, r)
	if !ok {
		return
	}
	hours := queryInt(r, "hours", 24, 1, 24*90)
	total, up, err := s.Store.CountChecks(r.Context(), m.ID, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.internal(w, "count_checks_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, monitorDetail{
		Monitor:          *m,
		WindowHours:      hours,
		TotalChecks:      total,
		UpChecks:         up,
		UptimePercentage: domain.UptimePercentage(total, up),
	})
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMonitor(w, r)
	if !ok {
		return
	}
	cs, err := s.Store.RecentChecks(r.Context(), m.ID, queryInt(r, "limit", 50, 1, 1000))
	if err != nil {
		s.internal(w, "recent_checks_failed", err)
		return
	}
	if cs == nil {
		cs = []domain.Check{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMonitor(w, r)
	if !ok {
		return
	}
	ins, err := s.Store.ListIncidents(r.Context(), m.ID, queryInt(r, "limit", 50, 1, 1000))
	if err != nil {
		s.internal(w, "list_incidents_failed", err)
		return
	}
	if ins == nil {
		ins = []domain.Incident{}
	}
	writeJSON(w, http.StatusOK, ins)
}

type checkResponse struct {
	MonitorID      domain.MonitorID `json:"monitor_id"`
	IsUp           bool             `json:"is_up"`
	StatusCode     *int             `json:"status_code"`
	ResponseTimeMS *int             `json:"response_time_ms"`
	Error          string           `json:"error,omitempty"`
	Attempts       int              `json:"attempts"`
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	id := domain.MonitorID(chi.URLParam(r, "id"))
	res, err := s.Checks.TriggerCheck(r.Context(), id)
	if err != nil && res == nil {
		s.internal(w, "trigger_check_failed", err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "monitor not found")
		return
	}
	if err != nil {
		// The probe ran but recording it failed.
		s.Logger.Warn("trigger_check_not_recorded", zap.String("monitor_id", string(id)), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, checkResponse{
		MonitorID:      id,
		IsUp:           res.Up,
		StatusCode:     res.StatusCode,
		ResponseTimeMS: res.LatencyMS,
		Error:          res.Error,
		Attempts:       res.Attempts,
	})
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := domain.MonitorID(chi.URLParam(r, "id"))
		if err := s.Checks.SetActive(r.Context(), id, active); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "monitor not found")
				return
			}
			s.internal(w, "set_active_failed", err)
			return
		}
		m, err := s.Store.GetMonitor(r.Context(), id)
		if err != nil {
			s.internal(w, "get_monitor_failed", err)
			return
		}
		s.Logger.Info("monitor_active_changed", zap.String("monitor_id", string(id)), zap.Bool("active", active))
		writeJSON(w, http.StatusOK, m)
	}
}

type alertPayload struct {
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMonitor(w, r)
	if !ok {
		return
	}
	var p alertPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.Destination) == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	ch := domain.Channel(p.Channel)
	switch ch {
	case domain.ChannelEmail:
	case domain.ChannelWebhook:
		if !isValidHTTPURL(p.Destination) {
			writeError(w, http.StatusBadRequest, "webhook destination must be http(s)")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "channel must be email or webhook")
		return
	}
	cfg := &domain.AlertConfig{MonitorID: m.ID, Channel: ch, Destination: strings.TrimSpace(p.Destination), IsActive: true}
	if err := s.Store.SaveAlertConfig(r.Context(), cfg); err != nil {
		s.internal(w, "save_alert_config_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// ---- helpers ----

func (s *Server) loadMonitor(w http.ResponseWriter, r *http.Request) (*domain.Monitor, bool) {
	m, err := s.Store.GetMonitor(r.Context(), domain.MonitorID(chi.URLParam(r, "id")))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return nil, false
		}
		s.internal(w, "get_monitor_failed", err)
		return nil, false
	}
	return m, true
}

func (s *Server) internal(w http.ResponseWriter, event string, err error) {
	s.Logger.Error(event, zap.String("category", string(domain.CategoryPersistence)), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func isValidHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// normalizeHTTPURL lowercases scheme and host, drops default ports and a
// bare trailing slash.
func normalizeHTTPURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u.Host = host
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}
