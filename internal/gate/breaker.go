package gate

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State описывает состояние circuit breaker.
type State int

const (
	// StateClosed — вызовы проходят, ошибки считаются.
	StateClosed State = iota
	// StateOpen — вызовы отклоняются без обращения к сети до истечения open-таймаута.
	StateOpen
	// StateHalfOpen — пропускается пробный вызов; успех закрывает контур, ошибка снова открывает.
	StateHalfOpen
)

// String возвращает читаемое имя состояния для логов и метрик.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Settings задаёт пороги переключения breaker. Значения приходят из конфигурации.
type Settings struct {
	// MaxFailures — число подряд идущих ошибок, после которого контур открывается.
	MaxFailures int
	// OpenTimeout — сколько контур остаётся открытым до пробного вызова.
	OpenTimeout time.Duration
}

// DefaultSettings возвращает пороги по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// Breaker — circuit breaker для одной внешней зависимости.
// Состояние разделяется всеми конкурентными запросами процесса,
// поэтому переходы защищены мьютексом.
type Breaker struct {
	name     string
	settings Settings
	logger   *log.Entry

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewBreaker создаёт breaker в закрытом состоянии.
func NewBreaker(name string, settings Settings, logger *log.Entry) *Breaker {
	if logger == nil {
		logger = log.WithField("component", "circuit-breaker")
	}
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = DefaultSettings().MaxFailures
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = DefaultSettings().OpenTimeout
	}

	return &Breaker{
		name:     name,
		settings: settings,
		logger:   logger.WithField("dependency", name),
		state:    StateClosed,
	}
}

// State возвращает текущее состояние (с учётом истёкшего open-таймаута).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// allow решает, можно ли пропустить вызов, и переводит контур в half-open,
// когда open-таймаут истёк.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentStateLocked() {
	case StateOpen:
		return false
	case StateHalfOpen:
		// В half-open проходит ровно один пробный вызов; остальные
		// отклоняются, пока проба не разрешится.
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// onSuccess фиксирует успешный вызов: half-open закрывается, счётчик сбрасывается.
func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.logger.Info("circuit breaker closed")
	}
	b.failures = 0
	b.probing = false
}

// onFailure фиксирует ошибку вызова: half-open или превышение порога открывают контур.
func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()
	b.probing = false

	if b.state == StateHalfOpen || b.failures >= b.settings.MaxFailures {
		if b.state != StateOpen {
			b.logger.WithField("failures", b.failures).Warn("circuit breaker opened")
		}
		b.state = StateOpen
	}
}

// currentStateLocked пересчитывает состояние с учётом таймаута. Вызывать под мьютексом.
func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && time.Since(b.lastFailure) > b.settings.OpenTimeout {
		b.state = StateHalfOpen
		b.logger.Info("circuit breaker half-open")
	}
	return b.state
}
