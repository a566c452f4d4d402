// Package gate holds the system-wide switch that allows or blocks new order
// submissions. Readers take an immutable snapshot; writers publish a new one.
package gate

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/model"
)

// Gate is safe for concurrent use.
type Gate struct {
	cur atomic.Pointer[model.SystemStatus]
}

// New returns a gate initialised with s.
func New(s model.SystemStatus) *Gate {
	g := &Gate{}
	g.cur.Store(&s)
	return g
}

// Open returns a gate that accepts orders, for callers with no stored status.
func Open() *Gate {
	return New(model.SystemStatus{OrdersEnabled: true})
}

// Snapshot returns the current status.
func (g *Gate) Snapshot() model.SystemStatus {
	return *g.cur.Load()
}

// SystemStatus satisfies cart.OrderGate for in-process callers.
func (g *Gate) SystemStatus(ctx context.Context) (model.SystemStatus, error) {
	return g.Snapshot(), nil
}

// CheckNewOrder fails with OrdersDisabled while the gate is closed.
func (g *Gate) CheckNewOrder() error {
	return Check(g.Snapshot())
}

// Publish replaces the snapshot unless s is older than the current one.
// It reports whether s was applied.
func (g *Gate) Publish(s model.SystemStatus) bool {
	next := s
	for {
		cur := g.cur.Load()
		if cur.Version > next.Version {
			return false
		}
		if g.cur.CompareAndSwap(cur, &next) {
			return true
		}
	}
}

// Check fails with OrdersDisabled when s blocks new orders.
func Check(s model.SystemStatus) error {
	if s.OrdersEnabled {
		return nil
	}
	if s.Reason == "" {
		return apierror.New(apierror.KindOrdersDisabled, "orders are disabled")
	}
	return apierror.New(apierror.KindOrdersDisabled, "orders are disabled: %s", s.Reason)
}

// Validate checks a requested change. Disabling needs a reason; enabling
// never does and drops any reason given. It returns the normalized reason.
func Validate(enabled bool, reason string) (string, error) {
	if enabled {
		return "", nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apierror.New(apierror.KindReasonRequired, "a reason is required to disable orders")
	}
	return reason, nil
}
