package mt5

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/peter-kozarec/equinox-mt5/pkg/utility"
	"github.com/peter-kozarec/equinox-mt5/pkg/utility/fixed"
)

// ParseResponse unwraps a {"result": ..} / {"error": ..} envelope. Empty or
// null input yields a nil message and no error. A payload without an envelope
// is returned as is.
func ParseResponse(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, &ParsingError{Err: fmt.Errorf("malformed json: %s", truncate(trimmed, 128))}
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, &ParsingError{Err: err}
	}
	if e, ok := envelope["error"]; ok && !isNull(e) {
		return nil, &RemoteError{Message: remoteMessage(e)}
	}
	if result, ok := envelope["result"]; ok {
		if isNull(result) {
			return nil, nil
		}
		return result, nil
	}
	return json.RawMessage(trimmed), nil
}

// Parse returns the envelope result as a generic value with numbers kept as json.Number.
func Parse(raw string) (any, error) {
	var v any
	if _, err := decodeResponse(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeResponse decodes the envelope result into v. It reports false when the
// result is absent.
func decodeResponse(raw string, v any) (bool, error) {
	msg, err := ParseResponse(raw)
	if err != nil || msg == nil {
		return false, err
	}
	if err := decodeNumbers(msg, v); err != nil {
		return false, &ParsingError{Err: err}
	}
	return true, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(msg json.RawMessage) bool {
	return len(bytes.TrimSpace(msg)) == 0 || string(bytes.TrimSpace(msg)) == "null"
}

func remoteMessage(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(msg, &obj); err == nil {
		for _, m := range []string{obj.Message, obj.Msg, obj.Detail} {
			if m != "" {
				return m
			}
		}
	}
	return string(bytes.TrimSpace(msg))
}

// Record is a broker object decoded with numbers kept as json.Number.
type Record map[string]any

func (r Record) str(names ...string) string {
	for _, name := range names {
		if s, ok := r[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (r Record) number(names ...string) (json.Number, bool) {
	for _, name := range names {
		switch v := r[name].(type) {
		case json.Number:
			return v, true
		case float64:
			return json.Number(fmt.Sprint(v)), true
		case string:
			if _, err := json.Number(v).Float64(); err == nil {
				return json.Number(v), true
			}
		}
	}
	return "", false
}

func (r Record) requirePoint(field string, aliases ...string) (fixed.Point, error) {
	n, ok := r.number(append([]string{field}, aliases...)...)
	if !ok {
		return fixed.Point{}, &MissingFieldError{Field: field}
	}
	p, err := numberToPoint(n)
	if err != nil {
		return fixed.Point{}, fmt.Errorf("field %q: %w", field, err)
	}
	return p, nil
}

func (r Record) optionalPoint(names ...string) fixed.Point {
	n, ok := r.number(names...)
	if !ok {
		return fixed.Zero
	}
	p, err := numberToPoint(n)
	if err != nil {
		return fixed.Zero
	}
	return p
}

func (r Record) requireInt64(field string, aliases ...string) (int64, error) {
	n, ok := r.number(append([]string{field}, aliases...)...)
	if !ok {
		return 0, &MissingFieldError{Field: field}
	}
	v, err := numberToInt64(n)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}

func (r Record) optionalInt64(names ...string) int64 {
	n, ok := r.number(names...)
	if !ok {
		return 0
	}
	v, err := numberToInt64(n)
	if err != nil {
		return 0
	}
	return v
}

// timestamp reads a seconds field and its _msc companion, preferring milliseconds.
func (r Record) timestamp(field string) time.Time {
	seconds := r.optionalInt64(field)
	millis := r.optionalInt64(field + "_msc")
	if seconds == 0 && millis == 0 {
		return time.Time{}
	}
	return utility.TimeFromBroker(seconds, millis)
}

// row is one positional record of a rates or ticks array.
type row []any

func decodeRows(raw string) ([]row, error) {
	var rows []row
	if _, err := decodeResponse(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r row) number(i int) (json.Number, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	switch v := r[i].(type) {
	case json.Number:
		return v, true
	case string:
		n := json.Number(v)
		if _, err := n.Float64(); err != nil {
			return "", false
		}
		return n, true
	}
	return "", false
}

func (r row) int64(i int) (int64, error) {
	n, ok := r.number(i)
	if !ok {
		return 0, fmt.Errorf("column %d: %w", i, ErrUnexpectedPayload)
	}
	return numberToInt64(n)
}

func (r row) point(i int) (fixed.Point, error) {
	n, ok := r.number(i)
	if !ok {
		return fixed.Point{}, fmt.Errorf("column %d: %w", i, ErrUnexpectedPayload)
	}
	return fixed.Parse(n.String())
}

// numberToInt64 accepts integral values written as floats, e.g. 1700000000.0.
func numberToInt64(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	p, err := fixed.Parse(n.String())
	if err != nil {
		return 0, err
	}
	if !p.IsInteger() {
		return 0, fmt.Errorf("%s is not an integer: %w", n, ErrUnexpectedPayload)
	}
	f, _ := p.Float64()
	return int64(f), nil
}

func numberToPoint(n json.Number) (fixed.Point, error) {
	return fixed.Parse(n.String())
}
