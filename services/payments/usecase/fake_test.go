package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piresc/topup/internal/pkg/models"
	"github.com/piresc/topup/services/payments"
)

type inTxKey struct{}

// memoryLedger is an in-memory TransactionRepo and BalanceRepo with the same
// conditional-update and rollback behaviour as the Postgres repositories
type memoryLedger struct {
	txMu sync.Mutex

	mu          sync.Mutex
	rows        map[string]models.Transaction
	credits     map[string]int64
	balances    map[string]int64
	transitions int
	seq         int
}

type ledgerState struct {
	rows        map[string]models.Transaction
	credits     map[string]int64
	balances    map[string]int64
	transitions int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		rows:     make(map[string]models.Transaction),
		credits:  make(map[string]int64),
		balances: make(map[string]int64),
	}
}

func (l *memoryLedger) seed(tx models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[tx.Reference] = tx
}

func (l *memoryLedger) snapshot() ledgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := ledgerState{
		rows:        make(map[string]models.Transaction, len(l.rows)),
		credits:     make(map[string]int64, len(l.credits)),
		balances:    make(map[string]int64, len(l.balances)),
		transitions: l.transitions,
	}
	for k, v := range l.rows {
		s.rows[k] = v
	}
	for k, v := range l.credits {
		s.credits[k] = v
	}
	for k, v := range l.balances {
		s.balances[k] = v
	}
	return s
}

func (l *memoryLedger) restore(s ledgerState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows, l.credits, l.balances, l.transitions = s.rows, s.credits, s.balances, s.transitions
}

func (l *memoryLedger) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	l.txMu.Lock()
	defer l.txMu.Unlock()

	before := l.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		l.restore(before)
		return err
	}
	return nil
}

func (l *memoryLedger) Create(ctx context.Context, userID, email string, amount int64, currency string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	now := time.Now().UTC()
	tx := models.Transaction{
		ID:        fmt.Sprintf("id-%d", l.seq),
		UserID:    userID,
		Email:     email,
		Amount:    amount,
		Currency:  currency,
		Reference: fmt.Sprintf("TOPUP_%032d", l.seq),
		Status:    models.TransactionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.rows[tx.Reference] = tx
	return &tx, nil
}

func (l *memoryLedger) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.rows[reference]
	if !ok {
		return nil, payments.ErrNotFound
	}
	return &tx, nil
}

func (l *memoryLedger) TransitionTo(ctx context.Context, reference string, status models.TransactionStatus, payload models.RawPayload) (*models.Transaction, error) {
	if !status.IsFinal() {
		return nil, payments.ErrInvalidTransition
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.rows[reference]
	if !ok {
		return nil, payments.ErrNotFound
	}
	if tx.Status != models.TransactionStatusPending {
		return nil, payments.ErrAlreadyFinalized
	}
	tx.Status = status
	tx.GatewayPayload = payload
	tx.UpdatedAt = time.Now().UTC()
	l.rows[reference] = tx
	l.transitions++
	return &tx, nil
}

func (l *memoryLedger) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	return nil, nil
}

func (l *memoryLedger) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range l.rows {
		if tx.Status == models.TransactionStatusPending && tx.CreatedAt.Before(createdBefore) {
			tx := tx
			out = append(out, &tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memoryLedger) Redact(ctx context.Context, reference string) error {
	return nil
}

func (l *memoryLedger) Credit(ctx context.Context, userID string, amount int64, idempotencyKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.credits[idempotencyKey]; ok {
		return payments.ErrAlreadyApplied
	}
	l.credits[idempotencyKey] = amount
	l.balances[userID] += amount
	return nil
}

func (l *memoryLedger) GetBalance(ctx context.Context, userID string) (*models.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &models.Balance{UserID: userID, Amount: l.balances[userID]}, nil
}

func (l *memoryLedger) status(reference string) models.TransactionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[reference].Status
}

// scriptedGateway answers Verify from a per-reference script
type scriptedGateway struct {
	mu      sync.Mutex
	answers map[string]func() (*models.GatewayVerifyResult, error)
	calls   int32
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{answers: make(map[string]func() (*models.GatewayVerifyResult, error))}
}

func (g *scriptedGateway) on(reference string, status models.TransactionStatus, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers[reference] = func() (*models.GatewayVerifyResult, error) {
		return &models.GatewayVerifyResult{
			Status:     status,
			Amount:     amount,
			Currency:   "NGN",
			RawPayload: models.RawPayload(fmt.Sprintf(`{"status":%q}`, status)),
		}, nil
	}
}

func (g *scriptedGateway) fail(reference string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers[reference] = func() (*models.GatewayVerifyResult, error) { return nil, err }
}

func (g *scriptedGateway) Initiate(ctx context.Context, tx *models.Transaction) (*models.GatewayInitResult, error) {
	return &models.GatewayInitResult{RedirectURL: "https://checkout.example.com/" + tx.Reference}, nil
}

func (g *scriptedGateway) Verify(ctx context.Context, reference string) (*models.GatewayVerifyResult, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	answer, ok := g.answers[reference]
	g.mu.Unlock()
	if !ok {
		return nil, &payments.GatewayError{Kind: payments.ErrGatewayRejected, StatusCode: 404, Message: "Transaction reference not found"}
	}
	return answer()
}

func (g *scriptedGateway) ValidateSignature(body []byte, signature string) bool {
	return false
}

// countingEvents records published events
type countingEvents struct {
	mu     sync.Mutex
	events []models.Transaction
}

func (e *countingEvents) PublishPaymentFinalized(ctx context.Context, tx *models.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, *tx)
	return nil
}

func (e *countingEvents) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}
