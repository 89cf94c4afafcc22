package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewRelayMetrics_IndependentRegistries(t *testing.T) {
	a := NewRelayMetrics()
	b := NewRelayMetrics() // must not panic on duplicate registration

	a.LinesTotal.WithLabelValues("info").Inc()
	a.LinesTotal.WithLabelValues("info").Inc()
	b.LinesTotal.WithLabelValues("info").Inc()

	if got := counterValue(t, a.LinesTotal.WithLabelValues("info")); got != 2 {
		t.Errorf("registry a: expected 2 lines, got %v", got)
	}
	if got := counterValue(t, b.LinesTotal.WithLabelValues("info")); got != 1 {
		t.Errorf("registry b: expected 1 line, got %v", got)
	}
}

func TestRelayMetrics_Gather(t *testing.T) {
	m := NewRelayMetrics()
	m.ScreenshotsTotal.Inc()
	m.ConnectionsActive.WithLabelValues(ProtocolLog).Set(3)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"log_relay_screenshot_saved_total",
		"log_relay_tcp_connections_active",
	} {
		if !found[name] {
			t.Errorf("expected metric family %s to be registered", name)
		}
	}
}
