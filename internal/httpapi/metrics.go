package httpapi

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(v)}}
}

func counter(v float64) *dto.Metric {
	return &dto.Metric{Counter: &dto.Counter{Value: ptr(v)}}
}

func family(name, help string, typ dto.MetricType, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{Name: ptr(name), Help: ptr(help), Type: typ.Enum(), Metric: ms}
}

// metricFamilies is computed per scrape from current monitor state.
func (s *Server) metricFamilies(ms []domain.Monitor) []*dto.MetricFamily {
	byStatus := map[domain.Status]int{
		domain.StatusUp:      0,
		domain.StatusDown:    0,
		domain.StatusUnknown: 0,
		domain.StatusPaused:  0,
	}
	var up []*dto.Metric
	for _, m := range ms {
		byStatus[m.CurrentStatus]++
		switch m.CurrentStatus {
		case domain.StatusUp, domain.StatusDown:
			v := 0.0
			if m.CurrentStatus == domain.StatusUp {
				v = 1
			}
			up = append(up, gauge(v, label("monitor_id", string(m.ID)), label("name", m.Name), label("kind", string(m.Kind))))
		}
	}

	var counts []*dto.Metric
	for _, st := range []domain.Status{domain.StatusUp, domain.StatusDown, domain.StatusUnknown, domain.StatusPaused} {
		counts = append(counts, gauge(float64(byStatus[st]), label("status", string(st))))
	}

	out := []*dto.MetricFamily{
		family("statuspulse_monitors", "Monitors by current status.", dto.MetricType_GAUGE, counts...),
	}
	if len(up) > 0 {
		out = append(out, family("statuspulse_monitor_up", "1 if the monitor is up, 0 if down.", dto.MetricType_GAUGE, up...))
	}
	if s.Stats != nil {
		st := s.Stats.Stats()
		out = append(out,
			family("statuspulse_cycles_total", "Scheduler cycles run.", dto.MetricType_COUNTER, counter(float64(st.Cycles))),
			family("statuspulse_checks_total", "Checks executed.", dto.MetricType_COUNTER, counter(float64(st.Checks))),
			family("statuspulse_check_failures_total", "Checks that could not be recorded.", dto.MetricType_COUNTER, counter(float64(st.Failures))),
			family("statuspulse_checks_skipped_total", "Checks skipped because one was already in flight.", dto.MetricType_COUNTER, counter(float64(st.Skipped))),
		)
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ms, err := s.Store.ListMonitors(r.Context())
	if err != nil {
		s.internal(w, "metrics_list_failed", err)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	for _, mf := range s.metricFamilies(ms) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			s.Logger.Warn("metrics_write_failed", zap.Error(err))
			return
		}
	}
}
