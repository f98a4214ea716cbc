package ews

import (
	"time"

	"github.com/icodeforyou/ews-go/hours"
	"github.com/icodeforyou/ews-go/slice"
	"github.com/icodeforyou/ews-go/types/maybe"
)

// MatchDate returns the prices starting on day, in the offset each price was
// sent with, keeping their order.
func MatchDate(prices []PricePoint, day hours.Date) []PricePoint {
	return slice.Filter(prices, func(p PricePoint) bool {
		return hours.DateOf(p.StartsAt) == day
	})
}

// GetPriceNow returns the total price of the latest point starting strictly
// before t. It also requires a point starting strictly after t, so t must be
// bracketed. There is no check of how far before t that point is.
func GetPriceNow(prices []PricePoint, t time.Time) maybe.Maybe[float64] {
	current := CurrentPrice(prices, t)
	if !current.IsValid() {
		return maybe.None[float64]()
	}
	return maybe.Some(current.Value().TotalPrice)
}

// CurrentPrice returns the whole point GetPriceNow takes its total from.
func CurrentPrice(prices []PricePoint, t time.Time) maybe.Maybe[PricePoint] {
	if len(prices) < 2 {
		return maybe.None[PricePoint]()
	}

	var lower *PricePoint
	hasUpper := false

	for i := range prices {
		start := prices[i].StartsAt
		switch {
		case start.Before(t):
			if lower == nil || start.After(lower.StartsAt) {
				lower = &prices[i]
			}
		case start.After(t):
			hasUpper = true
		}
	}

	if lower == nil || !hasUpper {
		return maybe.None[PricePoint]()
	}
	return maybe.Some(*lower)
}
