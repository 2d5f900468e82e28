package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const signalSelectFields = `signal_id as id, portfolio_id, symbol, exchange, side, quantity,
	trigger_type, trigger_price, trigger_low, trigger_high, confidence, rationale,
	status, expires_at, last_notified_at, created_at, updated_at`

const auditSelectFields = `audit_id as id, signal_id, action, actor, status, created_at`

// SignalStore implements interfaces.SignalStore using SurrealDB.
//
// Status transitions are single guarded UPDATE statements, so two concurrent
// acknowledgements of the same signal race inside the database, not in Go.
type SignalStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(db *surrealdb.DB, logger *common.Logger) *SignalStore {
	return &SignalStore{db: db, logger: logger}
}

func signalRecordID(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("trade_signal", id)
}

func (s *SignalStore) Create(ctx context.Context, signal *models.TradeSignal) error {
	if signal.ID == "" {
		signal.ID = fmt.Sprintf("sig_%s", uuid.New().String()[:8])
	}
	now := time.Now()
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = now
	}
	signal.UpdatedAt = now

	sql := `UPSERT $rid SET
		signal_id = $signal_id, portfolio_id = $portfolio_id,
		symbol = $symbol, exchange = $exchange, side = $side, quantity = $quantity,
		trigger_type = $trigger_type, trigger_price = $trigger_price,
		trigger_low = $trigger_low, trigger_high = $trigger_high,
		confidence = $confidence, rationale = $rationale,
		status = $status, expires_at = $expires_at,
		last_notified_at = $last_notified_at,
		created_at = $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":              signalRecordID(signal.ID),
		"signal_id":        signal.ID,
		"portfolio_id":     signal.PortfolioID,
		"symbol":           signal.Symbol,
		"exchange":         signal.Exchange,
		"side":             signal.Side,
		"quantity":         signal.Quantity,
		"trigger_type":     signal.TriggerType,
		"trigger_price":    signal.TriggerPrice,
		"trigger_low":      signal.TriggerLow,
		"trigger_high":     signal.TriggerHigh,
		"confidence":       signal.Confidence,
		"rationale":        signal.Rationale,
		"status":           signal.Status,
		"expires_at":       signal.ExpiresAt,
		"last_notified_at": signal.LastNotifiedAt,
		"created_at":       signal.CreatedAt,
		"updated_at":       signal.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

func (s *SignalStore) Get(ctx context.Context, id string) (*models.TradeSignal, error) {
	sql := "SELECT " + signalSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": signalRecordID(id),
	}

	results, err := surrealdb.Query[[]models.TradeSignal](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *SignalStore) List(ctx context.Context, portfolioID string, status models.SignalStatus) ([]*models.TradeSignal, error) {
	sql := "SELECT " + signalSelectFields + " FROM trade_signal WHERE portfolio_id = $portfolio_id"
	vars := map[string]any{
		"portfolio_id": portfolioID,
	}
	if status != "" {
		sql += " AND status = $status"
		vars["status"] = status
	}
	sql += " ORDER BY created_at DESC, signal_id DESC"

	return s.querySignals(ctx, sql, vars)
}

func (s *SignalStore) ListCreatedSince(ctx context.Context, portfolioID string, since time.Time) ([]*models.TradeSignal, error) {
	sql := "SELECT " + signalSelectFields + ` FROM trade_signal
		WHERE portfolio_id = $portfolio_id AND created_at >= $since
		ORDER BY created_at DESC, signal_id DESC`
	vars := map[string]any{
		"portfolio_id": portfolioID,
		"since":        since,
	}

	return s.querySignals(ctx, sql, vars)
}

func (s *SignalStore) ListAwaiting(ctx context.Context) ([]*models.TradeSignal, error) {
	sql := "SELECT " + signalSelectFields + ` FROM trade_signal
		WHERE status IN [$pending, $snoozed]
		ORDER BY created_at ASC, signal_id ASC`
	vars := map[string]any{
		"pending": models.StatusPending,
		"snoozed": models.StatusSnoozed,
	}

	return s.querySignals(ctx, sql, vars)
}

func (s *SignalStore) querySignals(ctx context.Context, sql string, vars map[string]any) ([]*models.TradeSignal, error) {
	results, err := surrealdb.Query[[]models.TradeSignal](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}

	items := make([]*models.TradeSignal, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			items = append(items, &(*results)[0].Result[i])
		}
	}
	return items, nil
}

func (s *SignalStore) TransitionIf(ctx context.Context, id string, to models.SignalStatus) (*models.TradeSignal, bool, error) {
	// SNOOZE only re-marks a PENDING signal; every other transition is allowed
	// from both awaiting states. The WHERE guard is the atomicity boundary.
	from := []models.SignalStatus{models.StatusPending, models.StatusSnoozed}
	if to == models.StatusSnoozed {
		from = []models.SignalStatus{models.StatusPending}
	}

	sql := `UPDATE $rid SET status = $to, updated_at = $now
		WHERE status IN $from RETURN AFTER`
	vars := map[string]any{
		"rid":  signalRecordID(id),
		"to":   to,
		"from": from,
		"now":  time.Now(),
	}

	results, err := surrealdb.Query[[]models.TradeSignal](ctx, s.db, sql, vars)
	if err != nil {
		return nil, false, fmt.Errorf("failed to transition signal: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		// Guard matched — re-read through the aliased select for a full row.
		updated, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}

	// Guard did not match: row absent or already terminal/snoozed.
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, fmt.Errorf("%w: signal %s", common.ErrNotFound, id)
	}
	return current, false, nil
}

func (s *SignalStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	sql := "UPDATE $rid SET last_notified_at = $at, updated_at = $at"
	vars := map[string]any{
		"rid": signalRecordID(id),
		"at":  at,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to mark signal notified: %w", err)
	}
	return nil
}

func (s *SignalStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	sql := `UPDATE trade_signal SET status = $expired, updated_at = $now
		WHERE status IN [$pending, $snoozed] AND expires_at < $now RETURN AFTER`
	vars := map[string]any{
		"expired": models.StatusExpired,
		"pending": models.StatusPending,
		"snoozed": models.StatusSnoozed,
		"now":     now,
	}

	results, err := surrealdb.Query[[]models.TradeSignal](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired signals: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}

func (s *SignalStore) AppendAudit(ctx context.Context, audit *models.SignalAudit) error {
	if audit.ID == "" {
		audit.ID = fmt.Sprintf("aud_%s", uuid.New().String()[:8])
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		audit_id = $audit_id, signal_id = $signal_id, action = $action,
		actor = $actor, status = $status, created_at = $created_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID("signal_audit", audit.ID),
		"audit_id":   audit.ID,
		"signal_id":  audit.SignalID,
		"action":     audit.Action,
		"actor":      audit.Actor,
		"status":     audit.Status,
		"created_at": audit.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to append signal audit: %w", err)
	}
	return nil
}

func (s *SignalStore) ListAudits(ctx context.Context, signalID string) ([]*models.SignalAudit, error) {
	sql := "SELECT " + auditSelectFields + ` FROM signal_audit
		WHERE signal_id = $signal_id ORDER BY created_at ASC, audit_id ASC`
	vars := map[string]any{
		"signal_id": signalID,
	}

	results, err := surrealdb.Query[[]models.SignalAudit](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list signal audits: %w", err)
	}

	items := make([]*models.SignalAudit, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			items = append(items, &(*results)[0].Result[i])
		}
	}
	return items, nil
}

// Compile-time check
var _ interfaces.SignalStore = (*SignalStore)(nil)
