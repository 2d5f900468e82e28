package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const targetSelectFields = `portfolio_id, date, ai_target, user_target, earned_actual,
	ai_rationale, ai_confidence, created_at, updated_at`

// TargetStore implements interfaces.TargetStore using SurrealDB.
//
// Every write is a field-scoped UPSERT on the (portfolio, date) record id, so a
// human edit of earned_actual and a scheduled AI refresh can interleave without
// lost updates.
type TargetStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTargetStore creates a new TargetStore.
func NewTargetStore(db *surrealdb.DB, logger *common.Logger) *TargetStore {
	return &TargetStore{db: db, logger: logger}
}

func targetRecordID(portfolioID, dateKey string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("daily_target", portfolioID+":"+dateKey)
}

func (s *TargetStore) GetOrCreate(ctx context.Context, portfolioID, dateKey string) (*models.DailyTarget, error) {
	// The ?? fallbacks make the create idempotent: existing values survive,
	// missing ones are zero-initialized in a single statement.
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, date = $date,
		ai_target = ai_target ?? 0,
		earned_actual = earned_actual ?? 0,
		ai_confidence = ai_confidence ?? 0,
		ai_rationale = ai_rationale ?? "",
		created_at = created_at ?? $now,
		updated_at = updated_at ?? $now`
	vars := map[string]any{
		"rid":          targetRecordID(portfolioID, dateKey),
		"portfolio_id": portfolioID,
		"date":         dateKey,
		"now":          time.Now(),
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to upsert daily target: %w", err)
	}

	return s.mustGet(ctx, portfolioID, dateKey)
}

func (s *TargetStore) Get(ctx context.Context, portfolioID, dateKey string) (*models.DailyTarget, error) {
	sql := "SELECT " + targetSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": targetRecordID(portfolioID, dateKey),
	}

	results, err := surrealdb.Query[[]models.DailyTarget](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get daily target: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *TargetStore) mustGet(ctx context.Context, portfolioID, dateKey string) (*models.DailyTarget, error) {
	t, err := s.Get(ctx, portfolioID, dateKey)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("daily target %s/%s missing after upsert", portfolioID, dateKey)
	}
	return t, nil
}

func (s *TargetStore) SetEarned(ctx context.Context, portfolioID, dateKey string, amount float64) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, date = $date,
		ai_target = ai_target ?? 0,
		ai_confidence = ai_confidence ?? 0,
		ai_rationale = ai_rationale ?? "",
		earned_actual = $amount,
		created_at = created_at ?? $now,
		updated_at = $now`
	vars := map[string]any{
		"rid":          targetRecordID(portfolioID, dateKey),
		"portfolio_id": portfolioID,
		"date":         dateKey,
		"amount":       amount,
		"now":          time.Now(),
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set earned actual: %w", err)
	}
	return nil
}

func (s *TargetStore) SetUserTarget(ctx context.Context, portfolioID, dateKey string, amount *float64) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, date = $date,
		ai_target = ai_target ?? 0,
		earned_actual = earned_actual ?? 0,
		ai_confidence = ai_confidence ?? 0,
		ai_rationale = ai_rationale ?? "",
		user_target = $user_target,
		created_at = created_at ?? $now,
		updated_at = $now`
	vars := map[string]any{
		"rid":          targetRecordID(portfolioID, dateKey),
		"portfolio_id": portfolioID,
		"date":         dateKey,
		"now":          time.Now(),
	}
	if amount != nil {
		vars["user_target"] = *amount
	} else {
		vars["user_target"] = nil
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set user target: %w", err)
	}
	return nil
}

func (s *TargetStore) SetAITarget(ctx context.Context, portfolioID, dateKey string, proposal models.TargetProposal) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, date = $date,
		earned_actual = earned_actual ?? 0,
		ai_target = $ai_target,
		ai_rationale = $ai_rationale,
		ai_confidence = $ai_confidence,
		created_at = created_at ?? $now,
		updated_at = $now`
	vars := map[string]any{
		"rid":           targetRecordID(portfolioID, dateKey),
		"portfolio_id":  portfolioID,
		"date":          dateKey,
		"ai_target":     proposal.Target,
		"ai_rationale":  proposal.Rationale,
		"ai_confidence": proposal.Confidence,
		"now":           time.Now(),
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to set AI target: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.TargetStore = (*TargetStore)(nil)
