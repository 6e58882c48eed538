package catalog

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// MockService — конфигурируемая заглушка CatalogService для тестов.
// Держит остатки в памяти, чтобы сценарии списания/восстановления были сквозными.
type MockService struct {
	mu sync.Mutex

	Products map[int64]domain.Product

	GetErr     error
	AdjustErr  error
	BatchErr   error
	RestoreErr error

	GetCalls     int
	AdjustCalls  int
	BatchCalls   int
	RestoreCalls int

	// LastRestore запоминает карту последнего восстановления для проверок.
	LastRestore map[int64]int32
}

// NewMockService возвращает mock с пустым каталогом.
func NewMockService() *MockService {
	return &MockService{Products: make(map[int64]domain.Product)}
}

// Seed добавляет товар в каталог заглушки.
func (m *MockService) Seed(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[p.ID] = p
}

// Stock возвращает текущий остаток товара.
func (m *MockService) Stock(id int64) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Products[id].StockQuantity
}

// GetProduct возвращает товар или настроенную ошибку.
func (m *MockService) GetProduct(_ context.Context, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return domain.Product{}, m.GetErr
	}
	p, ok := m.Products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// AdjustStock выставляет новый остаток или возвращает настроенную ошибку.
func (m *MockService) AdjustStock(_ context.Context, id int64, newQuantity int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AdjustCalls++
	if m.AdjustErr != nil {
		return m.AdjustErr
	}
	p, ok := m.Products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.StockQuantity = newQuantity
	m.Products[id] = p
	return nil
}

// BatchGetProducts возвращает найденные товары из заглушки.
func (m *MockService) BatchGetProducts(_ context.Context, ids []int64) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchCalls++
	if m.BatchErr != nil {
		return nil, m.BatchErr
	}
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.Products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// RestoreStock прибавляет количества к остаткам и запоминает карту вызова.
func (m *MockService) RestoreStock(_ context.Context, quantities map[int64]int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RestoreCalls++
	if m.RestoreErr != nil {
		return m.RestoreErr
	}
	m.LastRestore = make(map[int64]int32, len(quantities))
	for id, qty := range quantities {
		m.LastRestore[id] = qty
		if p, ok := m.Products[id]; ok {
			p.StockQuantity += qty
			m.Products[id] = p
		}
	}
	return nil
}

// SetGetErr переключает сценарий получения товара под мьютексом.
func (m *MockService) SetGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr = err
}

// SetAdjustErr переключает сценарий списания под мьютексом.
func (m *MockService) SetAdjustErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AdjustErr = err
}

var _ domain.CatalogService = (*MockService)(nil)
