package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kitchenlinehq/kitchenline-backend/internal/anomalies"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
)

const staleAnomalyMaxAgeHours = 72

// staleAnomalyResolver is the slice of the anomaly service the job needs.
type staleAnomalyResolver interface {
	ResolveByType(ctx context.Context, typeCode string, maxAgeHours int, input anomalies.ResolveInput) (int, error)
}

type StaleAnomalyJobParams struct {
	Logger      *logger.Logger
	Anomalies   staleAnomalyResolver
	MaxAgeHours int
}

func NewStaleAnomalyJob(params StaleAnomalyJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Anomalies == nil {
		return nil, fmt.Errorf("anomaly service required")
	}
	maxAge := params.MaxAgeHours
	if maxAge <= 0 {
		maxAge = staleAnomalyMaxAgeHours
	}
	return &staleAnomalyJob{
		logg:      params.Logger,
		anomalies: params.Anomalies,
		maxAge:    maxAge,
	}, nil
}

type staleAnomalyJob struct {
	logg      *logger.Logger
	anomalies staleAnomalyResolver
	maxAge    int
}

func (j *staleAnomalyJob) Name() string { return "stale-anomaly-resolve" }

// Run sweeps every rule's open anomalies older than the cutoff into a bulk
// resolution, so tickets nobody triaged stop cluttering the manager view.
func (j *staleAnomalyJob) Run(ctx context.Context) error {
	typeCodes := []string{
		anomalies.TypeDuplicateOrder,
		anomalies.TypeTableOvercapacity,
		anomalies.TypeKitchenOverload,
		anomalies.TypeIncompleteData,
		anomalies.TypePrepTimeExceeded,
	}

	input := anomalies.ResolveInput{
		Notes: "auto-resolved: exceeded retention window without triage",
	}

	var errs error
	total := 0
	for _, code := range typeCodes {
		resolved, err := j.anomalies.ResolveByType(ctx, code, j.maxAge, input)
		if err != nil {
			// A type missing from the catalog is a seed-data gap, not a
			// reason to abort the remaining sweeps.
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				j.logg.Warn(ctx, "anomaly type not seeded, skipping: "+code)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("resolve %s: %w", code, err))
			continue
		}
		total += resolved
	}
	if errs != nil {
		return fmt.Errorf("stale anomaly sweep: %w", errs)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"max_age_hours": j.maxAge,
		"rows_resolved": total,
	})
	j.logg.Info(logCtx, "stale anomaly sweep complete")
	return nil
}
