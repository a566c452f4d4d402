// Package service persists the table, order, close-out, print queue and
// system status lifecycles. Each mutation runs in one pgx transaction and
// publishes a live event once it has committed.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tableside/api/internal/apierror"
)

// Event types pushed to live subscribers.
const (
	EventTableUpdated  = "table.updated"
	EventPrintCreated  = "print.created"
	EventPrintUpdated  = "print.updated"
	EventPrintDeleted  = "print.deleted"
	EventSystemUpdated = "system.updated"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier pushes an event to the subscribers of a topic.
type Notifier interface {
	Publish(topic, eventType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, any) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// notFound maps pgx.ErrNoRows to a NotFound error naming what.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apierror.New(apierror.KindNotFound, "%s not found", what)
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
