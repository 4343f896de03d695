package anomalies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/config"
	dbpkg "github.com/kitchenlinehq/kitchenline-backend/pkg/db"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	dbtypes "github.com/kitchenlinehq/kitchenline-backend/pkg/db/types"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	pkgerrors "github.com/kitchenlinehq/kitchenline-backend/pkg/errors"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/payloads"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/pagination"
)

const maxResolutionNotesChars = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ResolveInput carries a resolution request.
type ResolveInput struct {
	Status enums.AnomalyStatus
	Method enums.ResolutionMethod
	Notes  string
	Actor  *uuid.UUID
}

// Service owns the anomaly lifecycle: recording findings and walking them
// through open → investigating → a terminal status.
type Service interface {
	Record(ctx context.Context, finding Finding) (*models.Anomaly, error)
	Query(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Anomaly, error)
	Get(ctx context.Context, anomalyID uuid.UUID) (*models.Anomaly, error)
	Investigate(ctx context.Context, anomalyID uuid.UUID, actor *uuid.UUID) (*models.Anomaly, error)
	Resolve(ctx context.Context, anomalyID uuid.UUID, input ResolveInput) (*models.Anomaly, error)
	ResolveByType(ctx context.Context, typeCode string, maxAgeHours int, input ResolveInput) (int, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	cfg    config.AnomalyConfig
	now    func() time.Time
}

// NewService builds the anomaly service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, cfg config.AnomalyConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("anomaly repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		cfg:    withAnomalyDefaults(cfg),
		now:    time.Now,
	}, nil
}

// Record persists a finding as an anomaly. Dedup rides the
// (type, order, detected_at) unique index: a second identical finding from a
// redelivered event is dropped without error. Severity at or above the
// notify threshold also queues a notification event, separate from the
// detection write.
func (s *service) Record(ctx context.Context, finding Finding) (*models.Anomaly, error) {
	if finding.TypeCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "finding type code required")
	}
	if finding.DetectedAt.IsZero() {
		finding.DetectedAt = s.now().UTC()
	}

	var recorded *models.Anomaly
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		anomalyType, err := repo.FindTypeByCode(ctx, finding.TypeCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "unknown anomaly type "+finding.TypeCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anomaly type")
		}

		anomaly := &models.Anomaly{
			TypeID:            anomalyType.ID,
			OrderID:           finding.OrderID,
			TableID:           finding.TableID,
			SeatID:            finding.SeatID,
			StationID:         finding.StationID,
			RelatedRoutingIDs: dbtypes.UUIDArray(finding.RelatedRoutingIDs),
			Title:             finding.Title,
			Description:       finding.Description,
			Metadata:          finding.Metadata,
			Confidence:        finding.Confidence,
			DetectedAt:        finding.DetectedAt,
			DetectionMethod:   enums.DetectionMethodSystem,
			Status:            enums.AnomalyStatusOpen,
			CustomerImpact:    finding.CustomerImpact,
			ImpactLevel:       finding.ImpactLevel,
			TimeImpactSeconds: finding.TimeImpactSeconds,
			Type:              anomalyType,
		}
		if err := repo.Create(ctx, anomaly); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_anomalies_type_order_detected") {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create anomaly")
		}
		recorded = anomaly

		err = s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAnomalyRaised,
			AggregateType: enums.AggregateAnomaly,
			AggregateID:   anomaly.ID,
			Version:       1,
			Data: payloads.AnomalyRaisedEvent{
				AnomalyID:         anomaly.ID,
				TypeID:            anomalyType.ID,
				Category:          anomalyType.Category,
				Severity:          anomaly.Severity(),
				OrderID:           anomaly.OrderID,
				TableID:           anomaly.TableID,
				RelatedRoutingIDs: finding.RelatedRoutingIDs,
				DetectedAt:        anomaly.DetectedAt,
			},
		})
		if err != nil {
			return err
		}

		if anomaly.Severity() < s.cfg.NotifySeverity {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateAnomaly,
			AggregateID:   anomaly.ID,
			Version:       1,
			Data: payloads.NotificationRequestedEvent{
				AnomalyID: anomaly.ID,
				Severity:  anomaly.Severity(),
				Title:     anomaly.Title,
				Message:   anomaly.Description,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

func (s *service) Query(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Anomaly, error) {
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list anomalies")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, anomalyID uuid.UUID) (*models.Anomaly, error) {
	if anomalyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "anomaly id required")
	}
	return s.load(ctx, s.repo, anomalyID)
}

// Investigate moves an open anomaly into investigating.
func (s *service) Investigate(ctx context.Context, anomalyID uuid.UUID, actor *uuid.UUID) (*models.Anomaly, error) {
	if anomalyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "anomaly id required")
	}

	var result *models.Anomaly
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		anomaly, err := s.load(ctx, repo, anomalyID)
		if err != nil {
			return err
		}
		if anomaly.Status != enums.AnomalyStatusOpen {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only open anomalies can move to investigating")
		}
		if err := repo.Update(ctx, anomaly.ID, map[string]any{
			"status": enums.AnomalyStatusInvestigating,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update anomaly")
		}
		anomaly.Status = enums.AnomalyStatusInvestigating
		result = anomaly
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resolve closes one anomaly with the given terminal status, resolution
// method, actor, and notes.
func (s *service) Resolve(ctx context.Context, anomalyID uuid.UUID, input ResolveInput) (*models.Anomaly, error) {
	if anomalyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "anomaly id required")
	}
	input, err := normalizeResolveInput(input)
	if err != nil {
		return nil, err
	}

	var result *models.Anomaly
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		anomaly, err := s.load(ctx, repo, anomalyID)
		if err != nil {
			return err
		}
		if anomaly.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "anomaly already resolved")
		}
		return s.resolveOne(ctx, repo, tx, anomaly, input, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveByType bulk-resolves every open or investigating anomaly of the
// given type older than maxAgeHours. Returns how many were closed.
func (s *service) ResolveByType(ctx context.Context, typeCode string, maxAgeHours int, input ResolveInput) (int, error) {
	typeCode = strings.TrimSpace(typeCode)
	if typeCode == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "type code required")
	}
	if maxAgeHours <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "max age must be positive")
	}
	input.Method = enums.ResolutionMethodBulk
	input, err := normalizeResolveInput(input)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-time.Duration(maxAgeHours) * time.Hour)
	var resolved int
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindTypeByCode(ctx, typeCode); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "unknown anomaly type "+typeCode)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anomaly type")
		}

		stale, err := repo.ListOpenByTypeOlderThan(ctx, typeCode, cutoff)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale anomalies")
		}
		for i := range stale {
			if err := s.resolveOne(ctx, repo, tx, &stale[i], input, nil); err != nil {
				return err
			}
			resolved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

func (s *service) resolveOne(ctx context.Context, repo Repository, tx *gorm.DB, anomaly *models.Anomaly, input ResolveInput, out **models.Anomaly) error {
	now := s.now().UTC()
	updates := map[string]any{
		"status":            input.Status,
		"resolution_method": input.Method,
		"resolved_at":       now,
	}
	if input.Actor != nil {
		updates["resolved_by"] = *input.Actor
	}
	if input.Notes != "" {
		updates["resolution_notes"] = input.Notes
	}
	if err := repo.Update(ctx, anomaly.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve anomaly")
	}

	anomaly.Status = input.Status
	anomaly.ResolutionMethod = &input.Method
	anomaly.ResolvedAt = &now
	anomaly.ResolvedBy = input.Actor
	if input.Notes != "" {
		notes := input.Notes
		anomaly.ResolutionNotes = &notes
	}
	if out != nil {
		*out = anomaly
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventAnomalyResolved,
		AggregateType: enums.AggregateAnomaly,
		AggregateID:   anomaly.ID,
		Version:       1,
		Data: payloads.AnomalyResolvedEvent{
			AnomalyID:        anomaly.ID,
			Status:           input.Status,
			ResolutionMethod: input.Method,
			ResolvedBy:       input.Actor,
			ResolvedAt:       now,
		},
	})
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Anomaly, error) {
	anomaly, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "anomaly not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load anomaly")
	}
	return anomaly, nil
}

func normalizeResolveInput(input ResolveInput) (ResolveInput, error) {
	if input.Status == "" {
		input.Status = enums.AnomalyStatusResolved
	}
	if !input.Status.IsTerminal() {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "resolution status must be terminal")
	}
	if input.Method == "" {
		input.Method = enums.ResolutionMethodManual
	}
	if !input.Method.IsValid() {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid resolution method")
	}
	input.Notes = strings.TrimSpace(input.Notes)
	if len(input.Notes) > maxResolutionNotesChars {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "resolution notes too long")
	}
	return input, nil
}
