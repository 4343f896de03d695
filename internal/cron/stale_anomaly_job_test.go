package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/kitchenlinehq/kitchenline-backend/internal/anomalies"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

func TestStaleAnomalyJobSweepsAllTypes(t *testing.T) {
	resolver := &fakeAnomalyResolver{resolved: map[string]int{
		anomalies.TypeDuplicateOrder:   2,
		anomalies.TypePrepTimeExceeded: 1,
	}}
	job := newStaleAnomalyJob(t, resolver, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resolver.calls) != 5 {
		t.Fatalf("expected 5 type sweeps, got %d", len(resolver.calls))
	}
	for _, maxAge := range resolver.calls {
		if maxAge != staleAnomalyMaxAgeHours {
			t.Fatalf("expected default max age %d, got %d", staleAnomalyMaxAgeHours, maxAge)
		}
	}
}

func TestStaleAnomalyJobHonorsConfiguredMaxAge(t *testing.T) {
	resolver := &fakeAnomalyResolver{}
	job := newStaleAnomalyJob(t, resolver, 24)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := resolver.calls[anomalies.TypeKitchenOverload]; got != 24 {
		t.Fatalf("expected max age 24, got %d", got)
	}
}

func TestStaleAnomalyJobSkipsUnseededTypes(t *testing.T) {
	resolver := &fakeAnomalyResolver{
		errs: map[string]error{
			anomalies.TypeIncompleteData: pkgerrors.New(pkgerrors.CodeNotFound, "unknown anomaly type"),
		},
	}
	job := newStaleAnomalyJob(t, resolver, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resolver.calls) != 5 {
		t.Fatalf("expected all 5 types attempted, got %d", len(resolver.calls))
	}
}

func TestStaleAnomalyJobReportsFailuresAfterFullSweep(t *testing.T) {
	resolver := &fakeAnomalyResolver{
		errs: map[string]error{
			anomalies.TypeDuplicateOrder: errors.New("db down"),
		},
	}
	job := newStaleAnomalyJob(t, resolver, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(resolver.calls) != 5 {
		t.Fatalf("one failing type must not abort the sweep, got %d calls", len(resolver.calls))
	}
}

func newStaleAnomalyJob(t *testing.T, resolver *fakeAnomalyResolver, maxAge int) *staleAnomalyJob {
	t.Helper()
	jobIface, err := NewStaleAnomalyJob(StaleAnomalyJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Anomalies:   resolver,
		MaxAgeHours: maxAge,
	})
	if err != nil {
		t.Fatalf("NewStaleAnomalyJob: %v", err)
	}
	job, ok := jobIface.(*staleAnomalyJob)
	if !ok {
		t.Fatalf("expected staleAnomalyJob, got %T", jobIface)
	}
	return job
}

type fakeAnomalyResolver struct {
	calls    map[string]int
	resolved map[string]int
	errs     map[string]error
}

func (f *fakeAnomalyResolver) ResolveByType(ctx context.Context, typeCode string, maxAgeHours int, input anomalies.ResolveInput) (int, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[typeCode] = maxAgeHours
	if err := f.errs[typeCode]; err != nil {
		return 0, err
	}
	return f.resolved[typeCode], nil
}
