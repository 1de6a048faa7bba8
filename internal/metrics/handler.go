package metrics

import (
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ServeHTTP renders all metrics in the Prometheus text exposition format.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range c.families() {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode failed", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// families assembles the full metric set: cycle counters held by the
// collector plus gauges derived from the current store state.
func (c *Collector) families() []*dto.MetricFamily {
	c.mu.Lock()
	successes := c.successes
	failures := make(map[string]float64, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}
	c.mu.Unlock()

	var failuresTotal float64
	failureMetrics := make([]*dto.Metric, 0, len(failures))
	kinds := make([]string, 0, len(failures))
	for k := range failures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		failuresTotal += failures[k]
		failureMetrics = append(failureMetrics, counter(failures[k], label("kind", k)))
	}

	out := []*dto.MetricFamily{
		family("untiswatch_refresh_cycles_total", "Completed refresh cycles by result.",
			dto.MetricType_COUNTER,
			counter(successes, label("result", "success")),
			counter(failuresTotal, label("result", "failure")),
		),
	}
	if len(failureMetrics) > 0 {
		out = append(out, family("untiswatch_refresh_failures_total",
			"Failed refresh cycles by failure kind.",
			dto.MetricType_COUNTER, failureMetrics...))
	}

	v := c.store.View()
	out = append(out,
		family("untiswatch_generation", "Current published snapshot generation.",
			dto.MetricType_GAUGE, gauge(float64(v.Generation))),
		family("untiswatch_lessons", "Lessons in the current snapshot.",
			dto.MetricType_GAUGE, gauge(float64(v.Snapshot.Len()))),
		family("untiswatch_diff_changes", "Size of the current diff by change kind.",
			dto.MetricType_GAUGE,
			gauge(float64(len(v.Diff.Added)), label("kind", "added")),
			gauge(float64(len(v.Diff.Removed)), label("kind", "removed")),
			gauge(float64(len(v.Diff.Modified)), label("kind", "modified")),
		),
	)
	if !v.LastSuccess.IsZero() {
		out = append(out, family("untiswatch_last_success_timestamp_seconds",
			"Unix time of the last successful refresh.",
			dto.MetricType_GAUGE, gauge(float64(v.LastSuccess.Unix()))))
	}
	if c.clients != nil {
		out = append(out, family("untiswatch_websocket_clients",
			"Currently connected WebSocket clients.",
			dto.MetricType_GAUGE, gauge(float64(c.clients()))))
	}
	return out
}

// --- dto construction helpers ------------------------------------------------

func family(name, help string, t dto.MetricType, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   t.Enum(),
		Metric: metrics,
	}
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: &v}}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: &v}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: &name, Value: &value}
}
