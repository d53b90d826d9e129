package reconciliation

import (
	"encoding/json"
	"math"
)

// Record is one row returned by SearchRead. Values are in their decoded JSON
// form: numbers are float64 or json.Number, relations are [id, name] pairs
// (many2one) or id lists (one2many).
type Record map[string]any

// ID returns the record id.
func (r Record) ID() int64 {
	id, _ := r.Int64(FieldID)
	return id
}

// Int64 returns an integer field.
func (r Record) Int64(field string) (int64, bool) {
	return toInt64(r[field])
}

// String returns a text field. ERP false values yield "".
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// RelationID returns the id of a many2one field, which arrives as [id, name],
// as a bare id, or as false when unset.
func (r Record) RelationID(field string) (int64, bool) {
	switch v := r[field].(type) {
	case []any:
		if len(v) == 0 {
			return 0, false
		}
		return toInt64(v[0])
	default:
		return toInt64(v)
	}
}

// IDs returns the ids of a one2many or many2many field.
func (r Record) IDs(field string) []int64 {
	list, ok := r[field].([]any)
	if !ok {
		if ids, ok := r[field].([]int64); ok {
			return ids
		}
		return nil
	}
	ids := make([]int64, 0, len(list))
	for _, v := range list {
		if id, ok := toInt64(v); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
