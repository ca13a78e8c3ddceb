package quotes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is ISO-8601 with millisecond precision, UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// LineItem is one quoted product. Keys other than name, price and qty
// (sourceId, editor row ids) are kept in Extra exactly as submitted.
type LineItem struct {
	Name  string
	Price float64
	Qty   int
	Extra map[string]any
}

// SourceID is the catalog id the item was picked from, "" when free-typed.
// The editor stores it as a number or a string.
func (it LineItem) SourceID() string {
	switch v := it.Extra["sourceId"].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (it LineItem) fields() map[string]any {
	m := make(map[string]any, len(it.Extra)+3)
	for k, v := range it.Extra {
		m[k] = v
	}
	m["name"] = it.Name
	m["price"] = it.Price
	m["qty"] = it.Qty
	return m
}

func (it LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.fields())
}

// MarshalYAML keeps YAML output in the stored JSON shape.
func (it LineItem) MarshalYAML() (any, error) {
	return it.fields(), nil
}

func (it *LineItem) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out LineItem
	for k, v := range raw {
		switch k {
		case "name":
			if v != nil {
				if s, ok := v.(string); ok {
					out.Name = s
				} else {
					out.Name = fmt.Sprint(v)
				}
			}
		case "price":
			f, err := number(v)
			if err != nil {
				return fmt.Errorf("line item price: %w", err)
			}
			out.Price = f
		case "qty":
			f, err := number(v)
			if err != nil {
				return fmt.Errorf("line item qty: %w", err)
			}
			out.Qty = int(f)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = v
		}
	}
	*it = out
	return nil
}

// number accepts a JSON number or a numeric string; null is zero.
func number(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// Record is a stored quotation request. Fields holds whatever the customer
// submitted besides id, createdAt and lineItems; it serializes flat.
type Record struct {
	ID        int64
	CreatedAt string
	Fields    map[string]any
	LineItems []LineItem
}

var reserved = map[string]bool{"id": true, "createdAt": true, "lineItems": true}

// NewRecord splits a decoded submission into a Record. Reserved keys in the
// submission are ignored except lineItems.
func NewRecord(submission map[string]any) (Record, error) {
	r := Record{Fields: make(map[string]any, len(submission))}
	for k, v := range submission {
		if reserved[k] {
			continue
		}
		r.Fields[k] = v
	}
	if raw, ok := submission["lineItems"]; ok && raw != nil {
		items, err := decodeLineItems(raw)
		if err != nil {
			return Record{}, err
		}
		r.LineItems = items
	}
	return r, nil
}

func (r Record) Created() (time.Time, error) {
	return time.Parse(TimeLayout, r.CreatedAt)
}

// String returns a free-form field as text, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return fmt.Sprint(v)
}

func (r Record) Email() string {
	return r.String("email")
}

// Name prefers the Spanish form field name used by the storefront.
func (r Record) Name() string {
	if n := r.String("nombre"); n != "" {
		return n
	}
	return r.String("name")
}

func (r Record) Total() float64 {
	var t float64
	for _, it := range r.LineItems {
		t += it.Price * float64(it.Qty)
	}
	return t
}

// FieldKeys returns the free-form keys sorted.
func (r Record) FieldKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge shallow-merges patch over r. id and createdAt cannot change; a
// lineItems key replaces the whole list.
func (r Record) Merge(patch map[string]any) (Record, error) {
	out := Record{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Fields:    make(map[string]any, len(r.Fields)+len(patch)),
		LineItems: r.LineItems,
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	for k, v := range patch {
		switch k {
		case "id", "createdAt":
		case "lineItems":
			items, err := decodeLineItems(v)
			if err != nil {
				return Record{}, err
			}
			out.LineItems = items
		default:
			out.Fields[k] = v
		}
	}
	return out, nil
}

// Matches reports whether q appears, case-insensitively, in the id or any
// textual field or line item name.
func (r Record) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	if strings.Contains(fmt.Sprint(r.ID), q) {
		return true
	}
	for _, k := range r.FieldKeys() {
		if strings.Contains(strings.ToLower(r.String(k)), q) {
			return true
		}
	}
	for _, it := range r.LineItems {
		if strings.Contains(strings.ToLower(it.Name), q) {
			return true
		}
	}
	return false
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	m["createdAt"] = r.CreatedAt
	if r.LineItems != nil {
		m["lineItems"] = r.LineItems
	}
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out Record
	if v, ok := raw["id"]; ok {
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("quote id: %w", err)
		}
		id, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return fmt.Errorf("quote id: %w", err)
			}
			id = int64(f)
		}
		out.ID = id
	}
	if v, ok := raw["createdAt"]; ok {
		if err := json.Unmarshal(v, &out.CreatedAt); err != nil {
			return fmt.Errorf("quote createdAt: %w", err)
		}
	}
	if v, ok := raw["lineItems"]; ok && string(v) != "null" {
		if err := json.Unmarshal(v, &out.LineItems); err != nil {
			return fmt.Errorf("quote lineItems: %w", err)
		}
	}
	out.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		if reserved[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		out.Fields[k] = val
	}
	*r = out
	return nil
}

func decodeLineItems(v any) ([]LineItem, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var items []LineItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("lineItems: %w", err)
	}
	return items, nil
}
