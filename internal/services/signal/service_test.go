package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/pacer/internal/calendar"
	"github.com/bobmcallan/pacer/internal/common"
	"github.com/bobmcallan/pacer/internal/interfaces"
	"github.com/bobmcallan/pacer/internal/models"
)

// --- Mock Storage ---

type mockStorageManager struct {
	signals    *mockSignalStore
	portfolios *mockPortfolioStore
}

func (m *mockStorageManager) TargetStore() interfaces.TargetStore       { return nil }
func (m *mockStorageManager) SignalStore() interfaces.SignalStore       { return m.signals }
func (m *mockStorageManager) PortfolioStore() interfaces.PortfolioStore { return m.portfolios }
func (m *mockStorageManager) Close() error                              { return nil }

// mockSignalStore keeps signals in memory with the same compare-and-set
// transition semantics as the SurrealDB store.
type mockSignalStore struct {
	mu      sync.Mutex
	signals map[string]*models.TradeSignal
	audits  []*models.SignalAudit
	nextID  int
}

func newMockSignalStore() *mockSignalStore {
	return &mockSignalStore{signals: make(map[string]*models.TradeSignal)}
}

func (m *mockSignalStore) Create(_ context.Context, sig *models.TradeSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig.ID == "" {
		m.nextID++
		sig.ID = fmt.Sprintf("sig_%d", m.nextID)
	}
	cp := *sig
	m.signals[sig.ID] = &cp
	return nil
}

func (m *mockSignalStore) Get(_ context.Context, id string) (*models.TradeSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return nil, nil
	}
	cp := *sig
	return &cp, nil
}

func (m *mockSignalStore) List(_ context.Context, pid string, status models.SignalStatus) ([]*models.TradeSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TradeSignal, 0)
	for _, sig := range m.signals {
		if sig.PortfolioID != pid {
			continue
		}
		if status != "" && sig.Status != status {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockSignalStore) ListCreatedSince(_ context.Context, pid string, since time.Time) ([]*models.TradeSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TradeSignal, 0)
	for _, sig := range m.signals {
		if sig.PortfolioID == pid && !sig.CreatedAt.Before(since) {
			cp := *sig
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSignalStore) ListAwaiting(_ context.Context) ([]*models.TradeSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.TradeSignal, 0)
	for _, sig := range m.signals {
		if sig.Status == models.StatusPending || sig.Status == models.StatusSnoozed {
			cp := *sig
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSignalStore) TransitionIf(_ context.Context, id string, to models.SignalStatus) (*models.TradeSignal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: signal %s", common.ErrNotFound, id)
	}

	allowed := sig.Status == models.StatusPending || sig.Status == models.StatusSnoozed
	if to == models.StatusSnoozed {
		allowed = sig.Status == models.StatusPending
	}
	if !allowed {
		cp := *sig
		return &cp, false, nil
	}

	sig.Status = to
	sig.UpdatedAt = time.Now()
	cp := *sig
	return &cp, true, nil
}

func (m *mockSignalStore) MarkNotified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig, ok := m.signals[id]; ok {
		sig.LastNotifiedAt = &at
	}
	return nil
}

func (m *mockSignalStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, sig := range m.signals {
		if (sig.Status == models.StatusPending || sig.Status == models.StatusSnoozed) && sig.ExpiresAt.Before(now) {
			sig.Status = models.StatusExpired
			count++
		}
	}
	return count, nil
}

func (m *mockSignalStore) AppendAudit(_ context.Context, audit *models.SignalAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *audit
	m.audits = append(m.audits, &cp)
	return nil
}

func (m *mockSignalStore) ListAudits(_ context.Context, signalID string) ([]*models.SignalAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SignalAudit, 0)
	for _, a := range m.audits {
		if a.SignalID == signalID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockPortfolioStore struct {
	portfolio *models.Portfolio
}

func (m *mockPortfolioStore) Get(_ context.Context, _ string) (*models.Portfolio, error) {
	return m.portfolio, nil
}

func (m *mockPortfolioStore) Save(_ context.Context, p *models.Portfolio) error {
	m.portfolio = p
	return nil
}

// --- Helpers ---

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(common.EngineConfig{
		Timezone:    "Asia/Kolkata",
		MarketOpen:  "09:15",
		MarketClose: "15:30",
	})
	if err != nil {
		t.Fatalf("calendar.New() error = %v", err)
	}
	return cal
}

// midSession is Wednesday 2026-01-14 14:00 in the engine zone.
func midSession(t *testing.T, cal *calendar.Calendar) time.Time {
	t.Helper()
	d, err := cal.ParseDate("2026-01-14")
	if err != nil {
		t.Fatal(err)
	}
	return d.Add(14 * time.Hour)
}

func newTestService(t *testing.T, now time.Time, holdings ...models.Holding) (*Service, *mockSignalStore) {
	t.Helper()
	store := newMockSignalStore()
	portfolios := &mockPortfolioStore{}
	if len(holdings) > 0 {
		portfolios.portfolio = &models.Portfolio{ID: "p1", Holdings: holdings}
	}
	svc := NewService(
		&mockStorageManager{signals: store, portfolios: portfolios},
		testCalendar(t),
		calendar.NewFixedClock(now),
		5,
		common.NewSilentLogger(),
	)
	return svc, store
}

func buyCandidate(symbol string) models.SignalCandidate {
	return models.SignalCandidate{
		Symbol:       symbol,
		Exchange:     "NSE",
		Side:         "BUY",
		Quantity:     10,
		TriggerType:  "LIMIT",
		TriggerPrice: 100,
		Confidence:   70,
	}
}

// --- Admission ---

func TestAdmit_MidSessionExpiresAtSameDayClose(t *testing.T) {
	cal := testCalendar(t)
	now := midSession(t, cal)
	svc, _ := newTestService(t, now)

	admitted, err := svc.Admit(context.Background(), "p1", []models.SignalCandidate{buyCandidate("TCS")})
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}
	if len(admitted) != 1 {
		t.Fatalf("admitted %d signals, want 1", len(admitted))
	}

	wantExpiry := now.Add(90 * time.Minute) // 14:00 -> 15:30
	if !admitted[0].ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want %v", admitted[0].ExpiresAt, wantExpiry)
	}
	if admitted[0].Status != models.StatusPending {
		t.Errorf("Status = %s, want PENDING", admitted[0].Status)
	}
}

func TestAdmit_AfterCloseExpiresNextTradingDay(t *testing.T) {
	cal := testCalendar(t)
	now := midSession(t, cal).Add(2 * time.Hour) // 16:00
	svc, _ := newTestService(t, now)

	admitted, err := svc.Admit(context.Background(), "p1", []models.SignalCandidate{buyCandidate("TCS")})
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}

	d, _ := cal.ParseDate("2026-01-15")
	wantExpiry := d.Add(15*time.Hour + 30*time.Minute)
	if !admitted[0].ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want next day close %v", admitted[0].ExpiresAt, wantExpiry)
	}
}

func TestAdmit_SkipsInvalidKeepsValid(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal))

	candidates := []models.SignalCandidate{
		{Symbol: "TCS", Side: "BUY", Quantity: 0, TriggerType: "MARKET", Confidence: 50},       // bad quantity
		{Symbol: "", Side: "BUY", Quantity: 10, TriggerType: "MARKET", Confidence: 50},         // no symbol
		{Symbol: "INFY", Side: "BUY", Quantity: 10, TriggerType: "MARKET", Confidence: 150},    // bad confidence
		{Symbol: "INFY", Side: "SELL", Quantity: 10, TriggerType: "MARKET", Confidence: 50},    // no holding
		{Symbol: "WIPRO", Side: "HOLD", Quantity: 10, TriggerType: "MARKET", Confidence: 50},   // bad side
		{Symbol: "HDFC", Side: "BUY", Quantity: 10, TriggerType: "LIMIT", Confidence: 50},      // LIMIT without price
		{Symbol: "SBIN", Side: "BUY", Quantity: 10, TriggerType: "ZONE", TriggerLow: 110, TriggerHigh: 100, Confidence: 50}, // inverted zone
		buyCandidate("RELIANCE"), // valid
	}

	admitted, err := svc.Admit(context.Background(), "p1", candidates)
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}
	if len(admitted) != 1 || admitted[0].Symbol != "RELIANCE" {
		t.Errorf("admitted = %v, want only RELIANCE", admitted)
	}
}

func TestAdmit_SellRequiresHolding(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal), models.Holding{Symbol: "TCS", Quantity: 5})

	candidates := []models.SignalCandidate{
		{Symbol: "TCS", Exchange: "NSE", Side: "SELL", Quantity: 5, TriggerType: "MARKET", Confidence: 60},
		{Symbol: "INFY", Exchange: "NSE", Side: "SELL", Quantity: 5, TriggerType: "MARKET", Confidence: 60},
	}

	admitted, err := svc.Admit(context.Background(), "p1", candidates)
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}
	if len(admitted) != 1 || admitted[0].Symbol != "TCS" {
		t.Errorf("admitted = %v, want only held TCS", admitted)
	}
}

func TestAdmit_CapsBatch(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal))

	candidates := make([]models.SignalCandidate, 8)
	for i := range candidates {
		candidates[i] = buyCandidate(fmt.Sprintf("SYM%d", i))
	}

	admitted, err := svc.Admit(context.Background(), "p1", candidates)
	if err != nil {
		t.Fatalf("Admit error = %v", err)
	}
	if len(admitted) != 5 {
		t.Errorf("admitted %d signals, want cap of 5", len(admitted))
	}
}

// --- Acknowledgement ---

func seedPending(t *testing.T, svc *Service) *models.TradeSignal {
	t.Helper()
	admitted, err := svc.Admit(context.Background(), "p1", []models.SignalCandidate{buyCandidate("TCS")})
	if err != nil || len(admitted) != 1 {
		t.Fatalf("seed Admit = %v, %v", admitted, err)
	}
	return admitted[0]
}

func TestAcknowledge_TransitionsAndAudits(t *testing.T) {
	cal := testCalendar(t)
	svc, store := newTestService(t, midSession(t, cal))
	sig := seedPending(t, svc)

	result, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionAck, "alex")
	if err != nil {
		t.Fatalf("Acknowledge error = %v", err)
	}
	if !result.Changed || result.Signal.Status != models.StatusAcked {
		t.Errorf("result = %+v, want changed ACKED", result)
	}

	audits, _ := store.ListAudits(context.Background(), sig.ID)
	if len(audits) != 1 || audits[0].Action != models.ActionAck || audits[0].Actor != "alex" {
		t.Errorf("audits = %v, want one ACK by alex", audits)
	}
}

func TestAcknowledge_TerminalIsNoOp(t *testing.T) {
	cal := testCalendar(t)
	svc, store := newTestService(t, midSession(t, cal))
	sig := seedPending(t, svc)

	if _, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionDismiss, "alex"); err != nil {
		t.Fatalf("first Acknowledge error = %v", err)
	}

	result, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionAck, "sam")
	if err != nil {
		t.Fatalf("second Acknowledge error = %v", err)
	}
	if result.Changed {
		t.Error("second acknowledgement reported a change on a terminal signal")
	}
	if result.Signal.Status != models.StatusDismissed {
		t.Errorf("Status = %s, want DISMISSED preserved", result.Signal.Status)
	}

	audits, _ := store.ListAudits(context.Background(), sig.ID)
	if len(audits) != 1 {
		t.Errorf("audits = %d, want 1 (no-op must not audit)", len(audits))
	}
}

func TestAcknowledge_SnoozeThenAck(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal))
	sig := seedPending(t, svc)

	result, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionSnooze, "alex")
	if err != nil || !result.Changed || result.Signal.Status != models.StatusSnoozed {
		t.Fatalf("snooze result = %+v, err = %v", result, err)
	}

	// Snoozing a snoozed signal is a no-op.
	result, err = svc.Acknowledge(context.Background(), sig.ID, models.ActionSnooze, "alex")
	if err != nil || result.Changed {
		t.Fatalf("re-snooze result = %+v, err = %v, want unchanged", result, err)
	}

	// But a snoozed signal can still be acked.
	result, err = svc.Acknowledge(context.Background(), sig.ID, models.ActionAck, "alex")
	if err != nil || !result.Changed || result.Signal.Status != models.StatusAcked {
		t.Fatalf("ack after snooze result = %+v, err = %v", result, err)
	}
}

func TestAcknowledge_ConcurrentRaceSingleAudit(t *testing.T) {
	cal := testCalendar(t)
	svc, store := newTestService(t, midSession(t, cal))
	sig := seedPending(t, svc)

	const racers = 8
	var wg sync.WaitGroup
	changed := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionExecute, "bot")
			if err != nil {
				t.Errorf("Acknowledge error = %v", err)
				return
			}
			changed <- result.Changed
		}()
	}
	wg.Wait()
	close(changed)

	wins := 0
	for c := range changed {
		if c {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("changed=true reported %d times, want exactly 1", wins)
	}

	audits, _ := store.ListAudits(context.Background(), sig.ID)
	if len(audits) != 1 {
		t.Errorf("audits = %d, want exactly 1", len(audits))
	}
}

func TestAcknowledge_UnknownAction(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal))
	sig := seedPending(t, svc)

	if _, err := svc.Acknowledge(context.Background(), sig.ID, "NUDGE", "alex"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestAcknowledge_NotFound(t *testing.T) {
	cal := testCalendar(t)
	svc, _ := newTestService(t, midSession(t, cal))

	if _, err := svc.Acknowledge(context.Background(), "sig_missing", models.ActionAck, "alex"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// --- Expiry ---

func TestSweepExpired_Idempotent(t *testing.T) {
	cal := testCalendar(t)
	now := midSession(t, cal)
	svc, _ := newTestService(t, now)
	sig := seedPending(t, svc)

	afterClose := now.Add(2 * time.Hour)
	count, err := svc.SweepExpired(context.Background(), afterClose)
	if err != nil || count != 1 {
		t.Fatalf("first sweep = %d, %v, want 1", count, err)
	}

	count, err = svc.SweepExpired(context.Background(), afterClose)
	if err != nil || count != 0 {
		t.Fatalf("second sweep = %d, %v, want 0", count, err)
	}

	got, err := svc.Get(context.Background(), sig.ID)
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if got.Status != models.StatusExpired {
		t.Errorf("Status = %s, want EXPIRED", got.Status)
	}
}

func TestSweepThenAcknowledge_NoOp(t *testing.T) {
	cal := testCalendar(t)
	now := midSession(t, cal)
	svc, _ := newTestService(t, now)
	sig := seedPending(t, svc)

	if _, err := svc.SweepExpired(context.Background(), now.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Acknowledge(context.Background(), sig.ID, models.ActionAck, "alex")
	if err != nil {
		t.Fatalf("Acknowledge error = %v", err)
	}
	if result.Changed || result.Signal.Status != models.StatusExpired {
		t.Errorf("result = %+v, want unchanged EXPIRED", result)
	}
}
