package table

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableside/api/internal/apierror"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		policy  enum.TableNamePolicy
		want    string
		wantErr bool
	}{
		{"trimmed", "  Terrace 2 ", enum.TableNamePolicyAny, "Terrace 2", false},
		{"empty", "   ", enum.TableNamePolicyAny, "", true},
		{"numeric ok", " 12 ", enum.TableNamePolicyNumeric, "12", false},
		{"numeric rejects letters", "12a", enum.TableNamePolicyNumeric, "", true},
		{"numeric rejects inner space", "1 2", enum.TableNamePolicyNumeric, "", true},
		{"numeric empty", "", enum.TableNamePolicyNumeric, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateName(tt.in, tt.policy)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apierror.ErrInvalidName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckDuplicate(t *testing.T) {
	existing := []model.Table{
		{Name: "Bar"},
		{Name: "5", IsClosed: true},
	}

	assert.True(t, errors.Is(CheckDuplicate(" bar ", existing), apierror.ErrDuplicateName))
	assert.True(t, errors.Is(CheckDuplicate("BAR", existing), apierror.ErrDuplicateName))
	assert.NoError(t, CheckDuplicate("5", existing), "closed tables free their name")
	assert.NoError(t, CheckDuplicate("Patio", existing))
}

func tableWith(statuses ...enum.OrderStatus) model.Table {
	t := model.Table{ID: uuid.New(), Name: "5"}
	for _, s := range statuses {
		t.Orders = append(t.Orders, model.Order{ID: uuid.New(), Status: s})
	}
	return t
}

func TestCloseRequiresNoPendingOrders(t *testing.T) {
	all := []enum.OrderStatus{enum.OrderStatusPending, enum.OrderStatusFinished, enum.OrderStatusCancelled}

	// Every combination of up to three orders.
	for n := 0; n <= 3; n++ {
		combos := [][]enum.OrderStatus{{}}
		for i := 0; i < n; i++ {
			var next [][]enum.OrderStatus
			for _, c := range combos {
				for _, s := range all {
					next = append(next, append(append([]enum.OrderStatus{}, c...), s))
				}
			}
			combos = next
		}
		for _, c := range combos {
			tbl := tableWith(c...)
			t.Run(fmt.Sprint(c), func(t *testing.T) {
				pending := PendingCount(tbl)
				err := Close(&tbl, model.BillClose{}, time.Now())
				if pending > 0 {
					assert.True(t, errors.Is(err, apierror.ErrHasPendingOrders))
					assert.False(t, tbl.IsClosed)
					assert.Nil(t, tbl.Bill)
				} else {
					require.NoError(t, err)
					assert.True(t, tbl.IsClosed)
				}
			})
		}
	}
}

func TestCloseRecordsBill(t *testing.T) {
	tbl := tableWith(enum.OrderStatusFinished)
	at := time.Date(2024, 6, 1, 23, 15, 0, 0, time.UTC)
	bill := model.BillClose{GrandTotal: decimal.RequireFromString("27.50")}

	require.NoError(t, Close(&tbl, bill, at))
	require.NotNil(t, tbl.ClosedAt)
	assert.Equal(t, at, *tbl.ClosedAt)
	require.NotNil(t, tbl.Bill)
	assert.Equal(t, tbl.ID, tbl.Bill.TableID)
	assert.Equal(t, at, tbl.Bill.ClosedAt)

	err := Close(&tbl, bill, at)
	assert.True(t, errors.Is(err, apierror.ErrInvalidTransition))
	assert.True(t, errors.Is(EnsureOpen(tbl), apierror.ErrInvalidTransition))
}

func TestCanClose(t *testing.T) {
	assert.True(t, CanClose(tableWith()))
	assert.True(t, CanClose(tableWith(enum.OrderStatusFinished, enum.OrderStatusCancelled)))
	assert.False(t, CanClose(tableWith(enum.OrderStatusFinished, enum.OrderStatusPending)))
}
