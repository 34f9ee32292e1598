package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLot() Lot {
	return Lot{
		ID:        uuid.New(),
		HoldingID: uuid.New(),
		BuyDate:   NewDate(2024, time.March, 15),
		BuyPrice:  decimal.NewFromInt(100),
		Quantity:  decimal.NewFromInt(10),
	}
}

func TestLot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(l *Lot)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "Valid lot should pass",
			mutate:  func(l *Lot) {},
			wantErr: false,
		},
		{
			name:    "Lot without holding should fail",
			mutate:  func(l *Lot) { l.HoldingID = uuid.Nil },
			wantErr: true,
			errMsg:  "lot must belong to a holding",
		},
		{
			name:    "Lot without buy date should fail",
			mutate:  func(l *Lot) { l.BuyDate = Date{} },
			wantErr: true,
			errMsg:  "invalid buy_date",
		},
		{
			name:    "Zero quantity should fail",
			mutate:  func(l *Lot) { l.Quantity = decimal.Zero },
			wantErr: true,
			errMsg:  "invalid quantity: must be positive",
		},
		{
			name:    "Negative quantity should fail",
			mutate:  func(l *Lot) { l.Quantity = decimal.NewFromInt(-1) },
			wantErr: true,
			errMsg:  "invalid quantity: must be positive",
		},
		{
			name:    "Zero buy price should fail",
			mutate:  func(l *Lot) { l.BuyPrice = decimal.Zero },
			wantErr: true,
			errMsg:  "invalid buy_price: must be positive",
		},
		{
			name:    "Quantity below column precision should fail",
			mutate:  func(l *Lot) { l.Quantity = decimal.RequireFromString("0.000000004") },
			wantErr: true,
			errMsg:  "invalid quantity: has more than 8 decimal places",
		},
		{
			name:    "Buy price with nine decimals should fail",
			mutate:  func(l *Lot) { l.BuyPrice = decimal.RequireFromString("1.123456789") },
			wantErr: true,
			errMsg:  "invalid buy_price: has more than 8 decimal places",
		},
		{
			name:    "Buy price with eight decimals should pass",
			mutate:  func(l *Lot) { l.BuyPrice = decimal.RequireFromString("0.00000001") },
			wantErr: false,
		},
		{
			name:    "Trailing zeros beyond eight decimals should pass",
			mutate:  func(l *Lot) { l.BuyPrice = decimal.RequireFromString("1.5000000000") },
			wantErr: false,
		},
		{
			name:    "Quantity with thirteen integer digits should fail",
			mutate:  func(l *Lot) { l.Quantity = decimal.RequireFromString("1000000000000") },
			wantErr: true,
			errMsg:  "invalid quantity: has more than 12 integer digits",
		},
		{
			name:    "Fractional quantity should pass",
			mutate:  func(l *Lot) { l.Quantity = decimal.RequireFromString("0.125") },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLot()
			tt.mutate(&l)
			err := l.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLot_Cost(t *testing.T) {
	l := validLot()
	l.Quantity = decimal.RequireFromString("1.5")
	l.BuyPrice = decimal.RequireFromString("10.333")

	assert.True(t, decimal.RequireFromString("15.4995").Equal(l.Cost()))
}

func TestLotPatch_Apply(t *testing.T) {
	t.Run("Only present fields are applied", func(t *testing.T) {
		l := validLot()
		holdingID := l.HoldingID
		qty := decimal.NewFromInt(3)

		err := LotPatch{Quantity: &qty}.Apply(&l)

		require.NoError(t, err)
		assert.True(t, qty.Equal(l.Quantity))
		assert.True(t, decimal.NewFromInt(100).Equal(l.BuyPrice))
		assert.Equal(t, holdingID, l.HoldingID)
	})

	t.Run("Non-positive price is rejected", func(t *testing.T) {
		l := validLot()
		price := decimal.NewFromInt(-5)
		err := LotPatch{BuyPrice: &price}.Apply(&l)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Empty patch is rejected", func(t *testing.T) {
		l := validLot()
		assert.ErrorIs(t, LotPatch{}.Apply(&l), ErrValidation)
	})
}
