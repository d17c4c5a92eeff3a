package lifecycle

import (
	"context"
	"sync"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockRecorder struct {
	mu      sync.Mutex
	records map[string]*entity.TransactionRecord
	writes  int
	saveErr error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{records: make(map[string]*entity.TransactionRecord)}
}

func (m *mockRecorder) CreateTransactionRecord(ctx context.Context, record *entity.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *record
	m.records[record.TransactionRef] = &cp
	m.writes++
	return nil
}

func (m *mockRecorder) GetByReference(ctx context.Context, ref string) (*entity.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ref], nil
}

type mockHistory struct {
	mu      sync.Mutex
	entries []*entity.TransactionHistory
}

func (m *mockHistory) Create(ctx context.Context, h *entity.TransactionHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, h)
	return nil
}

func (m *mockHistory) GetByTransactionRef(ctx context.Context, ref string) ([]*entity.TransactionHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.TransactionHistory
	for _, h := range m.entries {
		if h.TransactionRef == ref {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}
