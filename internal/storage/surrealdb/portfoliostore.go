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

const portfolioSelectFields = `portfolio_id as id, holdings, updated_at`

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB. It
// stores only the holdings snapshot the engine needs for SELL admission checks
// and scorecard sizing.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

func (s *PortfolioStore) Get(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM $rid"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID("portfolio", portfolioID),
	}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

func (s *PortfolioStore) Save(ctx context.Context, portfolio *models.Portfolio) error {
	portfolio.UpdatedAt = time.Now()

	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, holdings = $holdings, updated_at = $updated_at`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID("portfolio", portfolio.ID),
		"portfolio_id": portfolio.ID,
		"holdings":     portfolio.Holdings,
		"updated_at":   portfolio.UpdatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
