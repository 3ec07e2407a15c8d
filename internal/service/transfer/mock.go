package transfer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// MockService — конфигурируемая заглушка TransferService и EscrowService для тестов.
type MockService struct {
	mu sync.Mutex

	ReserveErr error
	ConfirmErr error
	ReleaseErr error
	Escrow     domain.Amount
	EscrowErr  error

	reserveCalls int
	confirmCalls int
	releaseCalls int
	holds        []domain.TransferHold
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{}
}

func (m *MockService) Reserve(_ context.Context, from, to domain.AccountRef, amount domain.Amount, reference string) (domain.TransferHold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reserveCalls++
	if m.ReserveErr != nil {
		return domain.TransferHold{}, m.ReserveErr
	}
	hold := domain.TransferHold{ID: uuid.NewString(), From: from, To: to, Amount: amount, Reference: reference}
	m.holds = append(m.holds, hold)
	return hold, nil
}

func (m *MockService) Confirm(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confirmCalls++
	return m.ConfirmErr
}

func (m *MockService) Release(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseCalls++
	return m.ReleaseErr
}

func (m *MockService) EscrowBalance(context.Context) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Escrow, m.EscrowErr
}

// Calls возвращает счётчики вызовов Reserve, Confirm и Release.
func (m *MockService) Calls() (reserve, confirm, release int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reserveCalls, m.confirmCalls, m.releaseCalls
}

// Holds возвращает копию выданных резервов.
func (m *MockService) Holds() []domain.TransferHold {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.TransferHold(nil), m.holds...)
}

var (
	_ domain.TransferService = (*MockService)(nil)
	_ domain.EscrowService   = (*MockService)(nil)
)
