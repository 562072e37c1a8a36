//go:build !integration

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister_Idempotent(t *testing.T) {
	// A second call must not re-register (which would panic).
	MustRegister()
	MustRegister()
}

func TestObserveRun_NormalizesMethod(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("rejected", "none"))
	ObserveRun("Rejected", "", 2*time.Second)
	after := testutil.ToFloat64(runsTotal.WithLabelValues("rejected", "none"))
	if after != before+1 {
		t.Errorf("empty method should count under none: before=%v after=%v", before, after)
	}
}

func TestAddFetchedBytes(t *testing.T) {
	before := testutil.ToFloat64(fetchedBytesTotal)
	AddFetchedBytes(2048)
	if got := testutil.ToFloat64(fetchedBytesTotal); got != before+2048 {
		t.Errorf("fetched bytes = %v, want %v", got, before+2048)
	}
}

func TestIncIngest(t *testing.T) {
	before := testutil.ToFloat64(ingestTotal.WithLabelValues("webhook"))
	IncIngest(" Webhook ")
	if got := testutil.ToFloat64(ingestTotal.WithLabelValues("webhook")); got != before+1 {
		t.Errorf("ingest count = %v, want %v", got, before+1)
	}
}
