// Package options canonicalizes product option schemas and buyer selections.
package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	maxDelta = decimal.NewFromInt(math.MaxInt64)
	minDelta = decimal.NewFromInt(math.MinInt64)
)

var (
	ErrInvalidOption       = errors.New("invalid option")
	ErrIncompleteSelection = errors.New("incomplete option selection")
)

type Value struct {
	Label      string `json:"label"`
	PriceDelta int64  `json:"price_delta"`
}

type Option struct {
	Name   string  `json:"name"`
	Values []Value `json:"values"`
}

type RawOption struct {
	Name   string     `json:"name"`
	Values []RawValue `json:"values"`
}

// RawValue accepts either a bare label ("Red") or {"label": "Red", "priceDelta": "1,000"}.
type RawValue struct {
	Label string
	Delta json.RawMessage
}

func (v *RawValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &v.Label)
	}

	var obj struct {
		Label      string          `json:"label"`
		PriceDelta json.RawMessage `json:"priceDelta"`
		Snake      json.RawMessage `json:"price_delta"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("option value must be a label or an object: %w", err)
	}
	v.Label = obj.Label
	v.Delta = obj.PriceDelta
	if len(v.Delta) == 0 {
		v.Delta = obj.Snake
	}
	return nil
}

type Selection struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type Selected struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	PriceDelta int64  `json:"price_delta"`
}

// NormalizeSchema trims and validates a raw schema. A delta that is present but not numeric
// rejects the whole option.
func NormalizeSchema(raw []RawOption) ([]Option, error) {
	out := make([]Option, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, ro := range raw {
		name := strings.TrimSpace(ro.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: option name is empty", ErrInvalidOption)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrInvalidOption, name)
		}
		seen[name] = true

		opt := Option{Name: name, Values: make([]Value, 0, len(ro.Values))}
		labels := make(map[string]bool, len(ro.Values))
		for _, rv := range ro.Values {
			label := strings.TrimSpace(rv.Label)
			if label == "" {
				return nil, fmt.Errorf("%w: option %q has an empty label", ErrInvalidOption, name)
			}
			delta, err := ParseDelta(rv.Delta)
			if err != nil {
				return nil, fmt.Errorf("%w: option %q value %q: %v", ErrInvalidOption, name, label, err)
			}
			if labels[label] {
				continue
			}
			labels[label] = true
			opt.Values = append(opt.Values, Value{Label: label, PriceDelta: delta})
		}
		if len(opt.Values) == 0 {
			return nil, fmt.Errorf("%w: option %q has no values", ErrInvalidOption, name)
		}
		out = append(out, opt)
	}
	return out, nil
}

// ParseDelta reads a JSON number or numeric string. Absent, null and "" mean 0.
func ParseDelta(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.NewReplacer(",", "", "_", "", " ", "").Replace(text)
		if text == "" {
			return 0, nil
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimPrefix(text, "+")

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("price delta %s is not a number", string(raw))
	}
	d = d.Round(0)
	if d.GreaterThan(maxDelta) || d.LessThan(minDelta) {
		return 0, fmt.Errorf("price delta %s is out of range", string(raw))
	}
	return d.IntPart(), nil
}

// Match resolves selections against a normalized schema. The result is sorted by name.
func Match(schema []Option, selections []Selection) ([]Selected, error) {
	out := make([]Selected, 0, len(schema))
	for _, opt := range schema {
		sel, ok := findSelection(selections, opt.Name)
		if !ok {
			continue
		}
		for _, v := range opt.Values {
			if v.Label == sel {
				out = append(out, Selected{Name: opt.Name, Label: v.Label, PriceDelta: v.PriceDelta})
				break
			}
		}
	}
	if len(schema) > 0 && len(out) < len(schema) {
		return nil, fmt.Errorf("%w: %d of %d options selected", ErrIncompleteSelection, len(out), len(schema))
	}
	sortSelected(out)
	return out, nil
}

func findSelection(selections []Selection, name string) (string, bool) {
	for _, s := range selections {
		if strings.TrimSpace(s.Name) == name {
			return strings.TrimSpace(s.Label), true
		}
	}
	return "", false
}

func sortSelected(s []Selected) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].Label < s[j].Label
	})
}

func UnitPrice(base int64, selected []Selected) (int64, error) {
	price := base
	for _, s := range selected {
		var err error
		if price, err = domain.AddAmount(price, s.PriceDelta); err != nil {
			return 0, fmt.Errorf("%w: unit price is out of range", ErrInvalidOption)
		}
	}
	if price < 0 {
		return 0, fmt.Errorf("%w: unit price would be negative", ErrInvalidOption)
	}
	return price, nil
}
