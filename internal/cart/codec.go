package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// storedLine is the persisted record layout. Older storefront builds wrote
// `price` or `discountedPrice` instead of `unitPrice`, numeric ids, and
// sometimes omitted quantity; those are accepted on read only.
type storedLine struct {
	ID            flexID       `json:"id"`
	Title         string       `json:"title"`
	UnitPrice     *json.Number `json:"unitPrice,omitempty"`
	Quantity      *json.Number `json:"quantity,omitempty"`
	Image         string       `json:"image,omitempty"`
	Supplier      string       `json:"supplier,omitempty"`
	OriginalPrice *json.Number `json:"originalPrice,omitempty"`

	Price           *json.Number `json:"price,omitempty"`
	DiscountedPrice *json.Number `json:"discountedPrice,omitempty"`
}

type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*f = flexID(data)
	default:
		// objects, arrays and booleans are not ids; the record gets dropped
		*f = ""
	}
	return nil
}

// EncodeLines serializes lines into the persisted JSON array.
func EncodeLines(lines []Line) ([]byte, error) {
	out := make([]storedLine, 0, len(lines))
	for _, l := range lines {
		price := json.Number(l.UnitPrice.String())
		qty := json.Number(fmt.Sprint(l.Quantity))
		rec := storedLine{
			ID:        flexID(l.ID),
			Title:     l.Title,
			UnitPrice: &price,
			Quantity:  &qty,
			Image:     l.Image,
			Supplier:  l.Supplier,
		}
		if l.OriginalPrice != nil {
			op := json.Number(l.OriginalPrice.String())
			rec.OriginalPrice = &op
		}
		out = append(out, rec)
	}
	return json.Marshal(out)
}

// DecodeLines parses a persisted JSON array. Malformed JSON or a non-array
// document is an error. Individual records that break line invariants are
// skipped and counted in dropped; repeated ids are merged into the first.
func DecodeLines(data []byte) (lines []Line, dropped int, err error) {
	var records []storedLine
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("decode cart lines: %w", err)
	}

	index := make(map[string]int, len(records))
	for _, rec := range records {
		line, ok := rec.toLine()
		if !ok {
			dropped++
			continue
		}
		if i, seen := index[line.ID]; seen {
			lines[i].Quantity += line.Quantity
			continue
		}
		index[line.ID] = len(lines)
		lines = append(lines, line)
	}
	return lines, dropped, nil
}

func (rec storedLine) toLine() (Line, bool) {
	id := strings.TrimSpace(string(rec.ID))
	if id == "" {
		return Line{}, false
	}

	price := decimal.Zero
	if raw := firstNumber(rec.UnitPrice, rec.Price, rec.DiscountedPrice); raw != nil {
		parsed, err := decimal.NewFromString(raw.String())
		if err != nil || parsed.IsNegative() {
			return Line{}, false
		}
		price = parsed
	}

	qty := 1
	if rec.Quantity != nil {
		n, err := rec.Quantity.Int64()
		if err != nil || n < 1 {
			return Line{}, false
		}
		qty = int(n)
	}

	line := Line{
		ID:        id,
		Title:     rec.Title,
		UnitPrice: price,
		Quantity:  qty,
		Image:     rec.Image,
		Supplier:  rec.Supplier,
	}
	// A bad original price only loses the strike-through, not the line.
	if rec.OriginalPrice != nil {
		if op, err := decimal.NewFromString(rec.OriginalPrice.String()); err == nil && !op.IsNegative() {
			line.OriginalPrice = &op
		}
	}
	return line, true
}

func firstNumber(candidates ...*json.Number) *json.Number {
	for _, c := range candidates {
		if c != nil && c.String() != "" {
			return c
		}
	}
	return nil
}
