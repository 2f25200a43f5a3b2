package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AttributeSelection maps an attribute identifier to the chosen option values.
// Single-select attributes carry one value, multi-select attributes several.
type AttributeSelection map[string][]string

// Value serializes the selection to JSON for the jsonb column.
func (a AttributeSelection) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the selection map.
func (a *AttributeSelection) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded AttributeSelection
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Key returns a stable canonical form of the selection. Two selections with
// the same attributes and values produce the same key regardless of map and
// slice ordering; it is the line match key together with the product id.
func (a AttributeSelection) Key() string {
	if len(a) == 0 {
		return ""
	}
	attrs := make([]string, 0, len(a))
	for attr := range a {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	var b strings.Builder
	for i, attr := range attrs {
		if i > 0 {
			b.WriteByte(';')
		}
		values := append([]string(nil), a[attr]...)
		sort.Strings(values)
		b.WriteString(attr)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

// Equal reports whether both selections resolve to the same canonical key.
func (a AttributeSelection) Equal(other AttributeSelection) bool {
	return a.Key() == other.Key()
}

// AttributeCatalog lists the selectable options a product offers, keyed by
// attribute identifier.
type AttributeCatalog map[string][]string

// Allows reports whether every attribute and value in the selection is part
// of the catalog. A nil catalog allows only the empty selection.
func (c AttributeCatalog) Allows(sel AttributeSelection) bool {
	for attr, values := range sel {
		allowed, ok := c[attr]
		if !ok {
			return false
		}
		for _, v := range values {
			found := false
			for _, candidate := range allowed {
				if candidate == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
