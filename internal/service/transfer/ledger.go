package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// Ledger — in-memory реализация двухфазного перевода со счетами и резервами.
// Reserve списывает сумму с плательщика сразу, Confirm зачисляет получателю, Release возвращает.
type Ledger struct {
	mu       sync.Mutex
	escrow   domain.AccountRef
	balances map[domain.AccountRef]domain.Amount
	holds    map[string]domain.TransferHold
	now      func() time.Time
}

// NewLedger создаёт ledger с эскроу-счётом и начальными балансами.
func NewLedger(escrow domain.AccountRef, seed map[domain.AccountRef]domain.Amount) *Ledger {
	balances := make(map[domain.AccountRef]domain.Amount, len(seed))
	for account, amount := range seed {
		balances[account] = amount
	}
	return &Ledger{
		escrow:   escrow,
		balances: balances,
		holds:    make(map[string]domain.TransferHold),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) Reserve(_ context.Context, from, to domain.AccountRef, amount domain.Amount, reference string) (domain.TransferHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining, err := l.balances[from].Sub(amount)
	if err != nil {
		return domain.TransferHold{}, fmt.Errorf("%w: %s has %s, needs %s", domain.ErrInsufficientFunds, from, l.balances[from], amount)
	}
	l.balances[from] = remaining

	hold := domain.TransferHold{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    amount,
		Reference: reference,
		CreatedAt: l.now(),
	}
	l.holds[hold.ID] = hold
	return hold, nil
}

func (l *Ledger) Confirm(_ context.Context, holdID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hold, ok := l.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}

	credited, err := l.balances[hold.To].Add(hold.Amount)
	if err != nil {
		return err
	}
	l.balances[hold.To] = credited
	delete(l.holds, holdID)
	return nil
}

func (l *Ledger) Release(_ context.Context, holdID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hold, ok := l.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}

	refunded, err := l.balances[hold.From].Add(hold.Amount)
	if err != nil {
		return err
	}
	l.balances[hold.From] = refunded
	delete(l.holds, holdID)
	return nil
}

// EscrowBalance возвращает баланс эскроу-счёта движка.
func (l *Ledger) EscrowBalance(ctx context.Context) (domain.Amount, error) {
	return l.Balance(ctx, l.escrow)
}

// Credit пополняет счёт и возвращает новый баланс.
func (l *Ledger) Credit(_ context.Context, account domain.AccountRef, amount domain.Amount) (domain.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	credited, err := l.balances[account].Add(amount)
	if err != nil {
		return domain.Amount{}, err
	}
	l.balances[account] = credited
	return credited, nil
}

func (l *Ledger) Balance(_ context.Context, account domain.AccountRef) (domain.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[account], nil
}

// PendingHolds возвращает количество незавершённых резервов.
func (l *Ledger) PendingHolds() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.holds)
}

var (
	_ domain.TransferService = (*Ledger)(nil)
	_ domain.EscrowService   = (*Ledger)(nil)
	_ domain.AccountFunder   = (*Ledger)(nil)
)
