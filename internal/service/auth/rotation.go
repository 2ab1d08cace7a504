package auth

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var defaultRotationThreshold = decimal.RequireFromString("0.8")

// Decides when a renewal token is replaced by a fresh one
type RotationPolicy struct {
	threshold decimal.Decimal
}

// Threshold is a share of max uses in (0, 1]
func NewRotationPolicy(threshold decimal.Decimal) (RotationPolicy, error) {
	if !threshold.IsPositive() || threshold.GreaterThan(decimal.NewFromInt(1)) {
		return RotationPolicy{}, fmt.Errorf("rotation threshold must be in (0, 1], got %s", threshold)
	}
	return RotationPolicy{threshold: threshold}, nil
}

// Rotate once used/max reaches the threshold
// Compared as used >= threshold*max, so no division rounding is involved
func (p RotationPolicy) ShouldRotate(usedCount int, maxUses int) bool {
	limit := p.threshold.Mul(decimal.NewFromInt(int64(maxUses)))
	return decimal.NewFromInt(int64(usedCount)).GreaterThanOrEqual(limit)
}
