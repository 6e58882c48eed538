package identity

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ordering/internal/domain"
)

// MockService — конфигурируемая заглушка IdentityService для тестов.
type MockService struct {
	mu sync.Mutex

	User       domain.User
	ResolveErr error

	ResolveCalls int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		User: domain.User{
			ID:    "buyer-1",
			Email: "buyer@example.com",
			Name:  "Test Buyer",
			Role:  "USER",
		},
	}
}

// ResolveByEmail возвращает заранее настроенного покупателя или ошибку и считает вызовы.
func (m *MockService) ResolveByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls++
	if m.ResolveErr != nil {
		return domain.User{}, m.ResolveErr
	}
	user := m.User
	if user.Email == "" {
		user.Email = email
	}
	return user, nil
}

// SetResolveErr переключает сценарий под мьютексом (для сценариев "сервис ожил").
func (m *MockService) SetResolveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResolveErr = err
}

var _ domain.IdentityService = (*MockService)(nil)
