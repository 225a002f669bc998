package service

import (
	"math"
	"time"

	"github.com/iliyamo/it-helpdesk/internal/model"
)

const hoursPerYear = 24 * 365.25

// Depreciate returns the straight-line book value of an asset bought for
// value at purchased with a useful life of lifeYears, evaluated at now.
// The result never drops below zero.  A non-positive life or a purchase
// date in the future leaves the value untouched.
func Depreciate(value float64, purchased time.Time, lifeYears int, now time.Time) float64 {
	if lifeYears <= 0 || value <= 0 || now.Before(purchased) {
		return value
	}
	age := now.Sub(purchased).Hours() / hoursPerYear
	v := value * (1 - age/float64(lifeYears))
	if v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}

// withCurrentValue fills e.CurrentValue when the purchase data allows it.
func withCurrentValue(e model.Equipment, now time.Time) model.Equipment {
	if e.PurchaseValue == nil {
		return e
	}
	v := *e.PurchaseValue
	if e.PurchaseDate != nil && e.UsefulLifeYears != nil {
		v = Depreciate(v, *e.PurchaseDate, *e.UsefulLifeYears, now)
	}
	e.CurrentValue = &v
	return e
}
