// Package printqueue owns the status machine of receipts, invoices and order
// tickets waiting for a printer. Items are never retried automatically; an
// operator resets a failed item with Retry.
package printqueue

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

var allowedTransitions = map[enum.PrintStatus][]enum.PrintStatus{
	enum.PrintStatusPending: {enum.PrintStatusPrinted, enum.PrintStatusError},
	enum.PrintStatusError:   {enum.PrintStatusPending},
}

// ValidateTransition returns InvalidTransition when current cannot move to next.
func ValidateTransition(current, next enum.PrintStatus) error {
	for _, s := range allowedTransitions[current] {
		if s == next {
			return nil
		}
	}
	return apierror.New(apierror.KindInvalidTransition, "print item cannot go from %s to %s", current, next)
}

// NewItem returns a pending item.
func NewItem(typ enum.PrintType, tableID uuid.UUID, content string, orderID *uuid.UUID, fiscal bool, at time.Time) (model.PrintQueueItem, error) {
	if !typ.Valid() {
		return model.PrintQueueItem{}, apierror.New(apierror.KindInvalidInput, "invalid print type %q", typ)
	}
	if strings.TrimSpace(content) == "" {
		return model.PrintQueueItem{}, apierror.New(apierror.KindInvalidInput, "content is required")
	}
	return model.PrintQueueItem{
		ID:        uuid.New(),
		Type:      typ,
		TableID:   tableID,
		Content:   content,
		OrderID:   orderID,
		Fiscal:    fiscal,
		Status:    enum.PrintStatusPending,
		CreatedAt: at,
	}, nil
}

// MarkPrinted moves a pending item to printed.
func MarkPrinted(it *model.PrintQueueItem, at time.Time) error {
	if err := ValidateTransition(it.Status, enum.PrintStatusPrinted); err != nil {
		return err
	}
	it.Status = enum.PrintStatusPrinted
	it.PrintedAt = &at
	it.ErrorMessage = nil
	return nil
}

// MarkError moves a pending item to error and records why.
func MarkError(it *model.PrintQueueItem, message string) error {
	if err := ValidateTransition(it.Status, enum.PrintStatusError); err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown printer error"
	}
	it.Status = enum.PrintStatusError
	it.ErrorMessage = &message
	return nil
}

// Retry puts a failed item back in the queue.
func Retry(it *model.PrintQueueItem) error {
	if err := ValidateTransition(it.Status, enum.PrintStatusPending); err != nil {
		return err
	}
	it.Status = enum.PrintStatusPending
	it.RetryCount++
	it.ErrorMessage = nil
	return nil
}
