package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pacer/internal/app"
	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

// --- Mocks ---

type mockStorageManager struct {
	portfolios *mockPortfolioStore
}

func (m *mockStorageManager) TargetStore() interfaces.TargetStore       { return nil }
func (m *mockStorageManager) SignalStore() interfaces.SignalStore       { return nil }
func (m *mockStorageManager) PortfolioStore() interfaces.PortfolioStore { return m.portfolios }
func (m *mockStorageManager) Close() error                              { return nil }

type mockPortfolioStore struct {
	saved *models.Portfolio
}

func (m *mockPortfolioStore) Get(_ context.Context, _ string) (*models.Portfolio, error) {
	return m.saved, nil
}
func (m *mockPortfolioStore) Save(_ context.Context, p *models.Portfolio) error {
	m.saved = p
	return nil
}

type mockTargetService struct {
	row *models.DailyTarget
	err error
}

func (m *mockTargetService) GetOrCreate(_ context.Context, pid string, _ time.Time) (*models.DailyTarget, error) {
	return m.row, m.err
}
func (m *mockTargetService) RecordEarned(_ context.Context, pid string, _ time.Time, amount float64) (*models.DailyTarget, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.row.EarnedActual = amount
	return m.row, nil
}
func (m *mockTargetService) SetUserTarget(_ context.Context, pid string, _ time.Time, amount *float64) (*models.DailyTarget, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.row.UserTarget = amount
	return m.row, nil
}
func (m *mockTargetService) RefreshAITarget(_ context.Context, _ string, _ time.Time, _ models.TargetProposal) error {
	return m.err
}
func (m *mockTargetService) Carryover(_ context.Context, _ string, _ time.Time) (models.Carryover, error) {
	return models.Carryover{}, m.err
}

type mockSignalService struct {
	signal *models.TradeSignal
	ack    *interfaces.AckResult
	err    error
}

func (m *mockSignalService) Admit(_ context.Context, _ string, _ []models.SignalCandidate) ([]*models.TradeSignal, error) {
	return nil, m.err
}
func (m *mockSignalService) Acknowledge(_ context.Context, _ string, action models.AckAction, _ string) (*interfaces.AckResult, error) {
	if _, ok := action.StatusFor(); !ok {
		return nil, fmt.Errorf("%w: unknown action %q", common.ErrInvalidInput, action)
	}
	return m.ack, m.err
}
func (m *mockSignalService) SweepExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, m.err
}
func (m *mockSignalService) Get(_ context.Context, id string) (*models.TradeSignal, error) {
	if m.signal == nil {
		return nil, fmt.Errorf("%w: signal %s", common.ErrNotFound, id)
	}
	return m.signal, m.err
}
func (m *mockSignalService) List(_ context.Context, _ string, _ models.SignalStatus) ([]*models.TradeSignal, error) {
	if m.signal == nil {
		return []*models.TradeSignal{}, m.err
	}
	return []*models.TradeSignal{m.signal}, m.err
}
func (m *mockSignalService) ListAudits(_ context.Context, _ string) ([]*models.SignalAudit, error) {
	return []*models.SignalAudit{}, m.err
}

type mockScorecardService struct{}

func (m *mockScorecardService) Build(_ context.Context, pid string, _ time.Time) (*models.Scorecard, error) {
	return &models.Scorecard{PortfolioID: pid, WindowDays: 7}, nil
}

type mockAdvisorService struct {
	result *interfaces.CycleResult
	err    error
}

func (m *mockAdvisorService) RunCycle(_ context.Context, pid string) (*interfaces.CycleResult, error) {
	return m.result, m.err
}

// --- Helpers ---

type testEnv struct {
	handler    http.Handler
	targets    *mockTargetService
	signals    *mockSignalService
	advisor    *mockAdvisorService
	portfolios *mockPortfolioStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cal, err := calendar.New(cfg.Engine)
	require.NoError(t, err)

	env := &testEnv{
		targets:    &mockTargetService{row: &models.DailyTarget{PortfolioID: "p1", Date: "2026-01-14", AITarget: 500}},
		signals:    &mockSignalService{},
		advisor:    &mockAdvisorService{result: &interfaces.CycleResult{PortfolioID: "p1"}},
		portfolios: &mockPortfolioStore{},
	}

	a := &app.App{
		Config:           cfg,
		Logger:           common.NewSilentLogger(),
		Storage:          &mockStorageManager{portfolios: env.portfolios},
		Calendar:         cal,
		Clock:            calendar.NewFixedClock(time.Date(2026, 1, 14, 14, 0, 0, 0, time.UTC)),
		TargetService:    env.targets,
		SignalService:    env.signals,
		ScorecardService: &mockScorecardService{},
		AdvisorService:   env.advisor,
	}

	env.handler = NewServer(a).Handler()
	return env
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, env.handler, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTargetToday(t *testing.T) {
	env := newTestEnv(t)

	env.targets.row.EarnedActual = 200

	rec := doRequest(t, env.handler, http.MethodGet, "/api/portfolios/p1/target/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Target          models.DailyTarget `json:"target"`
		EffectiveTarget float64            `json:"effective_target"`
		Gap             float64            `json:"gap"`
		Carryover       models.Carryover   `json:"carryover"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.Target.PortfolioID)
	assert.Equal(t, 500.0, resp.EffectiveTarget)
	assert.Equal(t, 300.0, resp.Gap)
}

func TestTargetEarned_PutOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPut, "/api/portfolios/p1/target/earned", map[string]float64{"amount": 250})
	require.Equal(t, http.StatusOK, rec.Code)

	var row models.DailyTarget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, 250.0, row.EarnedActual)

	rec = doRequest(t, env.handler, http.MethodGet, "/api/portfolios/p1/target/earned", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTargetUser_NullClears(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPut, "/api/portfolios/p1/target/user", map[string]interface{}{"amount": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.targets.row.UserTarget)
}

func TestTargetInvalidInputMapsTo400(t *testing.T) {
	env := newTestEnv(t)
	env.targets.err = fmt.Errorf("%w: bad amount", common.ErrInvalidInput)

	rec := doRequest(t, env.handler, http.MethodPut, "/api/portfolios/p1/target/earned", map[string]float64{"amount": 250})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_input", resp.Code)
}

func TestAdvisorRefresh_UpstreamMapsTo502(t *testing.T) {
	env := newTestEnv(t)
	env.advisor.err = fmt.Errorf("%w: oracle timeout", common.ErrUpstreamUnavailable)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/portfolios/p1/advisor/refresh", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "upstream_unavailable", resp.Code)
}

func TestSignalAck_TerminalNoOpIs200(t *testing.T) {
	env := newTestEnv(t)
	env.signals.ack = &interfaces.AckResult{
		Signal:  &models.TradeSignal{ID: "sig_1", Status: models.StatusDismissed},
		Changed: false,
	}

	rec := doRequest(t, env.handler, http.MethodPost, "/api/signals/sig_1/ack",
		map[string]string{"action": "ACK", "actor": "alex"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result interfaces.AckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Changed)
	assert.Equal(t, models.StatusDismissed, result.Signal.Status)
}

func TestSignalAck_UnknownActionIs400(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodPost, "/api/signals/sig_1/ack",
		map[string]string{"action": "NUDGE", "actor": "alex"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalGet_MissingIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/signals/sig_missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Code)
}

func TestSignalList_ByStatus(t *testing.T) {
	env := newTestEnv(t)
	env.signals.signal = &models.TradeSignal{ID: "sig_1", PortfolioID: "p1", Status: models.StatusPending}

	rec := doRequest(t, env.handler, http.MethodGet, "/api/portfolios/p1/signals?status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Signals []*models.TradeSignal `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Signals, 1)
}

func TestHoldings_ReplaceSnapshot(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{
		"holdings": []models.Holding{{Symbol: "TCS", Exchange: "NSE", Quantity: 10, AvgPrice: 4000}},
	}
	rec := doRequest(t, env.handler, http.MethodPut, "/api/portfolios/p1/holdings", body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.portfolios.saved)
	assert.Equal(t, "p1", env.portfolios.saved.ID)
	assert.Len(t, env.portfolios.saved.Holdings, 1)
}

func TestHoldings_RejectsInvalid(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{
		"holdings": []models.Holding{{Symbol: "", Quantity: 10}},
	}
	rec := doRequest(t, env.handler, http.MethodPut, "/api/portfolios/p1/holdings", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScorecard(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/portfolios/p1/scorecard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var card models.Scorecard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "p1", card.PortfolioID)
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.handler, http.MethodGet, "/api/portfolios/p1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
