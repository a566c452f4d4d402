// Package table owns the open/closed lifecycle of a table and the rules that
// gate closing it.
package table

import (
	"strings"
	"time"
	"unicode"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

// NormalizeName trims surrounding space.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// NameKey is the comparison key for uniqueness among open tables.
func NameKey(name string) string {
	return strings.ToLower(NormalizeName(name))
}

// ValidateName checks name against the configured naming policy and returns
// the normalized name.
func ValidateName(name string, policy enum.TableNamePolicy) (string, error) {
	name = NormalizeName(name)
	if name == "" {
		return "", apierror.New(apierror.KindInvalidName, "table name is required")
	}
	if policy == enum.TableNamePolicyNumeric {
		for _, r := range name {
			if !unicode.IsDigit(r) {
				return "", apierror.New(apierror.KindInvalidName, "table name must be numeric, got %q", name)
			}
		}
	}
	return name, nil
}

// CheckDuplicate fails when any open table in existing already uses name.
func CheckDuplicate(name string, existing []model.Table) error {
	key := NameKey(name)
	for _, t := range existing {
		if !t.IsClosed && NameKey(t.Name) == key {
			return apierror.New(apierror.KindDuplicateName, "table %q is already open", NormalizeName(name))
		}
	}
	return nil
}

// PendingCount is the number of t's orders still pending.
func PendingCount(t model.Table) int {
	n := 0
	for _, o := range t.Orders {
		if o.Status == enum.OrderStatusPending {
			n++
		}
	}
	return n
}

// CanClose reports whether t has no pending orders.
func CanClose(t model.Table) bool {
	return PendingCount(t) == 0
}

// EnsureOpen fails for a closed table. New orders require an open table.
func EnsureOpen(t model.Table) error {
	if t.IsClosed {
		return apierror.New(apierror.KindInvalidTransition, "table %s is closed", t.Name)
	}
	return nil
}

// Close marks t closed with bill as its financial record.
func Close(t *model.Table, bill model.BillClose, at time.Time) error {
	if err := EnsureOpen(*t); err != nil {
		return err
	}
	if n := PendingCount(*t); n > 0 {
		return apierror.New(apierror.KindHasPendingOrders, "table %s has %d pending order(s)", t.Name, n)
	}
	bill.TableID = t.ID
	bill.ClosedAt = at
	t.IsClosed = true
	t.ClosedAt = &at
	t.Bill = &bill
	return nil
}
