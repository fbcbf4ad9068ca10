package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/runner"
)

// Metrics are the gauges exported for one run.
type Metrics struct {
	RulePassed     *prometheus.GaugeVec
	RuleViolations *prometheus.GaugeVec
	RuleDuration   *prometheus.GaugeVec
	RunTimestamp   prometheus.Gauge
}

// NewMetrics registers the run gauges on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RulePassed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggcheck_rule_passed",
			Help: "Whether the rule passed (1) or not (0) in the last run.",
		}, []string{"rule", "story", "severity"}),
		RuleViolations: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggcheck_rule_violations",
			Help: "Number of violations the rule found in the last run.",
		}, []string{"rule"}),
		RuleDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggcheck_rule_duration_seconds",
			Help: "Wall time of the rule in the last run.",
		}, []string{"rule"}),
		RunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aggcheck_run_timestamp_seconds",
			Help: "Unix time the last run started.",
		}),
	}
}

// Observe records a summary. Skipped rules are left out.
func (m *Metrics) Observe(s *runner.Summary) {
	m.RunTimestamp.Set(float64(s.StartedAt.UnixMilli()) / 1000)

	for _, r := range s.Results {
		if r.Status == rules.StatusSkipped {
			continue
		}

		passed := 0.0
		if r.Status == rules.StatusPassed {
			passed = 1
		}

		m.RulePassed.WithLabelValues(r.Rule.Name, string(r.Rule.Story), string(r.Rule.Severity)).Set(passed)
		m.RuleViolations.WithLabelValues(r.Rule.Name).Set(float64(r.Violations))
		m.RuleDuration.WithLabelValues(r.Rule.Name).Set(r.Duration.Seconds())
	}
}

// WriteMetrics writes the summary in the node exporter textfile format.
func WriteMetrics(path string, s *runner.Summary) error {
	reg := prometheus.NewRegistry()
	NewMetrics(reg).Observe(s)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}

	return nil
}
