package model

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	MinRedeemablePoints = 100
	MaxProposedAmount   = 10000
	// AmountScale is the number of decimal places money columns keep.
	AmountScale = 2
)

var (
	PointValue       = decimal.RequireFromString("0.05")
	MaxDiscountRatio = decimal.RequireFromString("0.5")

	ErrBelowRedeemThreshold = errors.New("at least 100 points are required to redeem a discount")
	ErrNegativePoints       = errors.New("points spent cannot be negative")
)

// ApplyDiscount turns spent points into a discount on base:
// discount = min(points × 0.05, base × 0.5) cut down to whole cents,
// final = max(base − discount, 0). final + discount always equals base.
func ApplyDiscount(base decimal.Decimal, pointsSpent int64) (final, discount decimal.Decimal, err error) {
	if pointsSpent < 0 {
		return decimal.Zero, decimal.Zero, ErrNegativePoints
	}
	if pointsSpent == 0 {
		return base, decimal.Zero, nil
	}
	if pointsSpent < MinRedeemablePoints {
		return decimal.Zero, decimal.Zero, ErrBelowRedeemThreshold
	}
	discount = decimal.Min(decimal.NewFromInt(pointsSpent).Mul(PointValue), base.Mul(MaxDiscountRatio)).
		Truncate(AmountScale)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	final = decimal.Max(base.Sub(discount), decimal.Zero)
	return final, discount, nil
}
