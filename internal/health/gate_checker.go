package health

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/ordering/internal/gate"
)

// GateChecker сообщает состояние circuit breaker конкретной зависимости.
// Открытый breaker — degraded, не unhealthy: сервис продолжает принимать
// заказы, паркуя их в pending.
type GateChecker struct {
	name string
	gate *gate.Gate
}

// NewGateChecker создаёт проверку breaker'а для зависимости name.
func NewGateChecker(name string, callGate *gate.Gate) *GateChecker {
	return &GateChecker{name: name, gate: callGate}
}

// Check возвращает текущее состояние breaker'а.
func (c *GateChecker) Check() Check {
	start := time.Now()
	state := c.gate.BreakerState(c.name)

	status := StatusHealthy
	var message string
	switch state {
	case gate.StateOpen:
		status = StatusDegraded
		message = fmt.Sprintf("circuit breaker for %s is open", c.name)
	case gate.StateHalfOpen:
		status = StatusDegraded
		message = fmt.Sprintf("circuit breaker for %s is probing", c.name)
	}

	return Check{
		Name:       c.name,
		Status:     status,
		Message:    message,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

var _ Checker = (*GateChecker)(nil)
