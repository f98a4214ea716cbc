package ews

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/ews-go/slice"
)

type PriceMetadata struct {
	Interval     int
	IntervalUnit string // e.g. "hour"
	Unit         string // currency/price unit, e.g. "ct/kWh"
	Tariff       string
}

// PricePoint is one price interval. StartsAt keeps the offset it was sent with.
type PricePoint struct {
	DynamicPrice float64
	StaticPrice  float64
	TotalPrice   float64
	StartsAt     time.Time
}

// Equal reports structural equality, the offset of StartsAt included.
func (p PricePoint) Equal(other PricePoint) bool {
	_, off := p.StartsAt.Zone()
	_, otherOff := other.StartsAt.Zone()
	return p.DynamicPrice == other.DynamicPrice &&
		p.StaticPrice == other.StaticPrice &&
		p.TotalPrice == other.TotalPrice &&
		p.StartsAt.Equal(other.StartsAt) &&
		off == otherOff
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePricePoint{
		Dynamic:  p.DynamicPrice,
		Fix:      p.StaticPrice,
		Total:    p.TotalPrice,
		StartsAt: p.StartsAt.Format(time.RFC3339Nano),
	})
}

func (p *PricePoint) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePricePoint(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type wirePricePoint struct {
	Dynamic  float64 `json:"dynamic"`
	Fix      float64 `json:"fix"`
	Total    float64 `json:"total"`
	StartsAt string  `json:"startsAt"`
}

// Pointer fields tell a missing key apart from a zero value.
type rawPricePoint struct {
	Dynamic  *float64 `json:"dynamic"`
	Fix      *float64 `json:"fix"`
	Total    *float64 `json:"total"`
	StartsAt *string  `json:"startsAt"`
}

type rawPayload struct {
	Interval     *int              `json:"interval"`
	IntervalUnit *string           `json:"intervalUnit"`
	PriceUnit    *string           `json:"priceUnit"`
	Tariff       *string           `json:"tariff"`
	Today        []json.RawMessage `json:"today"`
	Tomorrow     []json.RawMessage `json:"tomorrow"`
}

var errMissing = errors.New("missing required key")

// ParsePricePoint decodes a single price item with the keys dynamic, fix,
// total and startsAt.
func ParsePricePoint(data []byte) (PricePoint, error) {
	var raw rawPricePoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return PricePoint{}, &ParseError{Err: err}
	}
	return raw.toPricePoint()
}

func (r rawPricePoint) toPricePoint() (PricePoint, error) {
	switch {
	case r.Dynamic == nil:
		return PricePoint{}, &ParseError{Field: "dynamic", Err: errMissing}
	case r.Fix == nil:
		return PricePoint{}, &ParseError{Field: "fix", Err: errMissing}
	case r.Total == nil:
		return PricePoint{}, &ParseError{Field: "total", Err: errMissing}
	case r.StartsAt == nil:
		return PricePoint{}, &ParseError{Field: "startsAt", Err: errMissing}
	}

	startsAt, err := parseTimestamp(*r.StartsAt)
	if err != nil {
		return PricePoint{}, &ParseError{Field: "startsAt", Err: err}
	}

	return PricePoint{
		DynamicPrice: *r.Dynamic,
		StaticPrice:  *r.Fix,
		TotalPrice:   *r.Total,
		StartsAt:     startsAt,
	}, nil
}

// Accepted ISO-8601 forms. Every layout requires an offset, so local
// timestamps are rejected.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

func parseTimestamp(str string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, str)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", str, firstErr)
}

func parsePayload(body []byte) (PriceMetadata, []PricePoint, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return PriceMetadata{}, nil, &ParseError{Err: err}
	}

	switch {
	case raw.Interval == nil:
		return PriceMetadata{}, nil, &ParseError{Field: "interval", Err: errMissing}
	case raw.IntervalUnit == nil:
		return PriceMetadata{}, nil, &ParseError{Field: "intervalUnit", Err: errMissing}
	case raw.PriceUnit == nil:
		return PriceMetadata{}, nil, &ParseError{Field: "priceUnit", Err: errMissing}
	case raw.Tariff == nil:
		return PriceMetadata{}, nil, &ParseError{Field: "tariff", Err: errMissing}
	}

	meta := PriceMetadata{
		Interval:     *raw.Interval,
		IntervalUnit: *raw.IntervalUnit,
		Unit:         *raw.PriceUnit,
		Tariff:       *raw.Tariff,
	}

	items := append(raw.Today, raw.Tomorrow...)
	prices := make([]PricePoint, 0, len(items))
	for _, item := range items {
		price, err := ParsePricePoint(item)
		if err != nil {
			return PriceMetadata{}, nil, err
		}
		prices = append(prices, price)
	}

	return meta, prices, nil
}

// Copy returns a slice that shares nothing with prices.
func Copy(prices []PricePoint) []PricePoint {
	return slice.Map(prices, func(p PricePoint) PricePoint { return p })
}
