package mt5

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/peter-kozarec/equinox-mt5/pkg/common"
)

var preciousMetals = map[string]struct{}{
	"XAU": {},
	"XAG": {},
	"XPT": {},
	"XPD": {},
}

// RawSymbol is symbol metadata as returned by symbol_info or symbols_get.
type RawSymbol = Record

// DecodeRawSymbol accepts a single object or a list holding exactly one object.
func DecodeRawSymbol(data []byte) (RawSymbol, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []RawSymbol
		if err := decodeNumbers(trimmed, &list); err != nil {
			return nil, &ParsingError{Err: err}
		}
		if len(list) != 1 {
			return nil, &ParsingError{Err: fmt.Errorf("expected one symbol, got %d: %w", len(list), ErrUnexpectedPayload)}
		}
		return list[0], nil
	}
	var raw RawSymbol
	if err := decodeNumbers(trimmed, &raw); err != nil {
		return nil, &ParsingError{Err: err}
	}
	if raw == nil {
		return nil, &ParsingError{Err: ErrUnexpectedPayload}
	}
	return raw, nil
}

// Normalize converts raw symbol metadata into an Instrument. It performs no I/O.
func Normalize(raw RawSymbol, fundingCurrency string) (common.Instrument, error) {
	name := raw.str("name", "symbol")
	if name == "" {
		return common.Instrument{}, &NormalizationError{Err: &MissingFieldError{Field: "name"}}
	}

	fail := func(err error) (common.Instrument, error) {
		return common.Instrument{}, &NormalizationError{Symbol: name, Err: err}
	}

	base := strings.ToUpper(raw.str("currency_base"))
	quote := strings.ToUpper(raw.str("currency_profit"))
	if base == "" {
		base = strings.ToUpper(substr(name, 0, 3))
	}
	if quote == "" {
		quote = strings.ToUpper(substr(name, 3, 6))
	}
	if _, metal := preciousMetals[base]; metal && len(quote) < 3 {
		quote = fundingCurrency
	}
	if !isCurrencyCode(base) {
		return fail(fmt.Errorf("invalid base currency %q", base))
	}
	if !isCurrencyCode(quote) {
		return fail(fmt.Errorf("invalid quote currency %q", quote))
	}

	digits, err := raw.requirePoint("digits")
	if err != nil {
		return fail(err)
	}
	point, err := raw.requirePoint("point")
	if err != nil {
		return fail(err)
	}
	volumeMin, err := raw.requirePoint("volume_min", "volume_low")
	if err != nil {
		return fail(err)
	}
	volumeMax, err := raw.requirePoint("volume_max", "volume_high")
	if err != nil {
		return fail(err)
	}
	volumeStep, err := raw.requirePoint("volume_step")
	if err != nil {
		return fail(err)
	}

	if !digits.IsInteger() || digits.IsNeg() {
		return fail(fmt.Errorf("digits %s must be a non negative integer", digits))
	}
	if !volumeStep.IsPos() {
		return fail(fmt.Errorf("volume_step %s must be positive", volumeStep))
	}
	pricePrecision, _ := digits.Float64()

	kind := common.InstrumentKindGenericContract
	if isForex(raw.str("path"), raw.str("category")) {
		kind = common.InstrumentKindCurrencyPair
	}

	sizeIncrement := volumeStep.Trim()

	return common.Instrument{
		Symbol:         name,
		Venue:          Venue,
		Kind:           kind,
		BaseCurrency:   base,
		QuoteCurrency:  quote,
		PricePrecision: int(pricePrecision),
		SizePrecision:  sizeIncrement.Scale(),
		PriceIncrement: point,
		SizeIncrement:  sizeIncrement,
		LotSize:        sizeIncrement,
		MinQuantity:    volumeMin,
		MaxQuantity:    volumeMax,
		MarginInit:     raw.optionalPoint("margin_initial"),
		MarginMaint:    raw.optionalPoint("margin_maintenance"),
		MakerFee:       raw.optionalPoint("maker_fee"),
		TakerFee:       raw.optionalPoint("taker_fee"),
	}, nil
}

func isForex(path, category string) bool {
	return strings.Contains(strings.ToLower(path), "forex") ||
		strings.Contains(strings.ToLower(category), "fx")
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func substr(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
