package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("alive", nil, 10*time.Millisecond)
	m.ObserveRequest("alive", errors.New("refused"), time.Millisecond)
	m.PollCycle("ok")
	m.Command("power_on", "sent")
	m.SetAlive(1)
	m.SetPower(true)

	if got := testutil.ToFloat64(m.deviceRequests.WithLabelValues("alive", "ok")); got != 1 {
		t.Errorf("ok requests = %v", got)
	}
	if got := testutil.ToFloat64(m.deviceRequests.WithLabelValues("alive", "error")); got != 1 {
		t.Errorf("error requests = %v", got)
	}
	if got := testutil.ToFloat64(m.pollCycles.WithLabelValues("ok")); got != 1 {
		t.Errorf("poll cycles = %v", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("power_on", "sent")); got != 1 {
		t.Errorf("commands = %v", got)
	}
	if got := testutil.ToFloat64(m.alive); got != 1 {
		t.Errorf("alive = %v", got)
	}
	if got := testutil.ToFloat64(m.power); got != 1 {
		t.Errorf("power = %v", got)
	}

	m.SetPower(false)
	if got := testutil.ToFloat64(m.power); got != 0 {
		t.Errorf("power after off = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("result", nil, 0)
	m.PollCycle("ok")
	m.Command("power_off", "skipped")
	m.SetAlive(0)
	m.SetPower(false)
}
