package gate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Имена зависимостей, под которые регистрируются отдельные breaker-ы.
const (
	DependencyIdentity     = "identity"
	DependencyCatalogRead  = "catalog-read"
	DependencyCatalogWrite = "catalog-write"
)

var (
	gateRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordering_gate_rejected_total",
		Help: "Total number of calls rejected by an open circuit, per dependency.",
	}, []string{"dependency"})
	gateFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ordering_gate_failures_total",
		Help: "Total number of attempted remote calls that failed, per dependency.",
	}, []string{"dependency"})
	gateBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ordering_gate_breaker_state",
		Help: "Current breaker state per dependency: 0=closed, 1=open, 2=half-open.",
	}, []string{"dependency"})
)

// ErrCircuitOpen возвращается, когда контур открыт и вызов даже не начинался.
// Вызывающий обрабатывает его так же, как таймаут: компенсаций не требуется.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RemoteCallError означает, что вызов был предпринят и завершился ошибкой.
type RemoteCallError struct {
	Dependency string
	Cause      error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call to %s failed: %v", e.Dependency, e.Cause)
}

// Unwrap открывает первопричину для errors.Is/As.
func (e *RemoteCallError) Unwrap() error {
	return e.Cause
}

// IsUnavailable сообщает, что ошибка пришла из gate (открытый контур или упавший вызов)
// и заказ должен уйти в pending, а не в клиентскую ошибку.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var rce *RemoteCallError
	return errors.As(err, &rce)
}

// Gate оборачивает каждый исходящий вызов circuit breaker-ом своей зависимости.
// Registry создаётся на старте процесса и передаётся явно — никакого глобального состояния.
// Gate не делает retry: политика повторов целиком принадлежит reconciler-у.
type Gate struct {
	settings Settings
	logger   *log.Entry

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGate создаёт реестр breaker-ов с общими настройками порогов.
func NewGate(settings Settings, logger *log.Entry) *Gate {
	if logger == nil {
		logger = log.WithField("component", "gate")
	}
	return &Gate{
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Do выполняет fn под breaker-ом зависимости dependency.
// Открытый контур — ErrCircuitOpen; ошибка самого вызова заворачивается в RemoteCallError.
func (g *Gate) Do(dependency string, fn func() error) error {
	breaker := g.breaker(dependency)

	if !breaker.allow() {
		gateRejectedTotal.WithLabelValues(dependency).Inc()
		g.publishState(dependency, breaker)
		return fmt.Errorf("%s: %w", dependency, ErrCircuitOpen)
	}

	err := fn()
	if err != nil {
		breaker.onFailure()
		gateFailuresTotal.WithLabelValues(dependency).Inc()
		g.publishState(dependency, breaker)
		return &RemoteCallError{Dependency: dependency, Cause: err}
	}

	breaker.onSuccess()
	g.publishState(dependency, breaker)
	return nil
}

// BreakerState возвращает состояние breaker-а зависимости (для health-проверок).
func (g *Gate) BreakerState(dependency string) State {
	return g.breaker(dependency).State()
}

// breaker лениво создаёт breaker для зависимости.
func (g *Gate) breaker(dependency string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[dependency]
	if !ok {
		b = NewBreaker(dependency, g.settings, g.logger)
		g.breakers[dependency] = b
	}
	return b
}

func (g *Gate) publishState(dependency string, b *Breaker) {
	gateBreakerState.WithLabelValues(dependency).Set(float64(b.State()))
}
