package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, r *Recorder, name string) *dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, label := range m.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

func TestObserveUpsert(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveUpsert("football", "banker", "stored")
	r.ObserveUpsert("football", "banker", "stored")
	r.ObserveUpsert("", "vip", "invalid")

	family := findMetric(t, r, "tipgate_engine_upserts_total")
	if family == nil {
		t.Fatalf("upserts counter not gathered")
	}
	if len(family.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(family.GetMetric()))
	}
	for _, m := range family.GetMetric() {
		switch labelValue(m, "result") {
		case "stored":
			if m.GetCounter().GetValue() != 2 {
				t.Fatalf("stored count = %v, want 2", m.GetCounter().GetValue())
			}
		case "invalid":
			if labelValue(m, "sport") != "unknown" {
				t.Fatalf("empty sport must normalize to unknown, got %q", labelValue(m, "sport"))
			}
		default:
			t.Fatalf("unexpected result label %q", labelValue(m, "result"))
		}
	}
}

func TestObserveStoreOp(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveStoreOp(StoreOperationPut, StoreOutcomeOK, 3*time.Millisecond)
	r.ObserveStoreOp(StoreOperationGet, StoreOutcomeMiss, time.Millisecond)
	r.ObserveStoreOp("", "", time.Millisecond)

	counters := findMetric(t, r, "tipgate_store_operations_total")
	if counters == nil {
		t.Fatalf("store counter not gathered")
	}
	if len(counters.GetMetric()) != 3 {
		t.Fatalf("expected 3 label combinations, got %d", len(counters.GetMetric()))
	}

	latency := findMetric(t, r, "tipgate_store_operation_duration_seconds")
	if latency == nil {
		t.Fatalf("store latency histogram not gathered")
	}
	var samples uint64
	for _, m := range latency.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Fatalf("expected 3 latency samples, got %d", samples)
	}
}

func TestObserveQueryAndDenials(t *testing.T) {
	r := NewRecorder(nil)

	r.ObserveQuery("list", "anonymous", "ok", 2*time.Millisecond)
	r.ObserveQuery("detail", "vip", "ok", time.Millisecond)
	r.ObserveGateDenial("authenticated", "vip")

	if findMetric(t, r, "tipgate_query_requests_total") == nil {
		t.Fatalf("query counter not gathered")
	}
	denials := findMetric(t, r, "tipgate_gate_denials_total")
	if denials == nil {
		t.Fatalf("denial counter not gathered")
	}
	m := denials.GetMetric()[0]
	if labelValue(m, "tier") != "authenticated" || labelValue(m, "category") != "vip" {
		t.Fatalf("unexpected denial labels: %v", m.GetLabel())
	}
}

func TestNilRecorderIsInert(t *testing.T) {
	var r *Recorder

	r.ObserveUpsert("football", "banker", "stored")
	r.ObserveStoreOp(StoreOperationPut, StoreOutcomeOK, time.Millisecond)
	r.ObserveQuery("list", "anonymous", "ok", time.Millisecond)
	r.ObserveGateDenial("anonymous", "vip")

	if r.Handler() == nil {
		t.Fatalf("nil recorder must still return a handler")
	}
	if r.Gatherer() == nil {
		t.Fatalf("nil recorder must still return a gatherer")
	}
}
