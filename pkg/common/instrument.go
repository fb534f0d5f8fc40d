package common

import (
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

type InstrumentKind string

const (
	InstrumentKindCurrencyPair    InstrumentKind = "CurrencyPair"
	InstrumentKindGenericContract InstrumentKind = "GenericContract"
)

// Instrument is immutable once built. A reload replaces it, it is never resized in place.
type Instrument struct {
	Symbol         string         `json:"symbol"`
	Venue          string         `json:"venue"`
	Kind           InstrumentKind `json:"kind"`
	BaseCurrency   string         `json:"base_currency"`
	QuoteCurrency  string         `json:"quote_currency"`
	PricePrecision int            `json:"price_precision"`
	SizePrecision  int            `json:"size_precision"`
	PriceIncrement fixed.Point    `json:"price_increment"`
	SizeIncrement  fixed.Point    `json:"size_increment"`
	LotSize        fixed.Point    `json:"lot_size"`
	MinQuantity    fixed.Point    `json:"min_quantity"`
	MaxQuantity    fixed.Point    `json:"max_quantity"`
	MarginInit     fixed.Point    `json:"margin_init"`
	MarginMaint    fixed.Point    `json:"margin_maint"`
	MakerFee       fixed.Point    `json:"maker_fee"`
	TakerFee       fixed.Point    `json:"taker_fee"`

	Source      string              `json:"src,omitempty"`
	ExecutionId utility.ExecutionID `json:"eid,omitempty"`
	TraceID     utility.TraceID     `json:"tid,omitempty"`
	TimeStamp   time.Time           `json:"ts"`
}

func (i Instrument) Id() string {
	return i.Symbol + "." + i.Venue
}

// Price converts a raw broker price to the instrument's price precision.
func (i Instrument) Price(p fixed.Point) fixed.Point {
	return p.Rescale(i.PricePrecision)
}

// Quantity converts a raw broker volume to the instrument's size precision.
func (i Instrument) Quantity(q fixed.Point) fixed.Point {
	return q.Rescale(i.SizePrecision)
}

func (i Instrument) Fields() []zap.Field {
	return []zap.Field{
		zap.String("id", i.Id()),
		zap.String("kind", string(i.Kind)),
		zap.String("base", i.BaseCurrency),
		zap.String("quote", i.QuoteCurrency),
		zap.Int("price_precision", i.PricePrecision),
		zap.Int("size_precision", i.SizePrecision),
		zap.String("size_increment", i.SizeIncrement.String()),
	}
}
