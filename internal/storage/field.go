package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the storage representation for timestamp fields.
const TimeLayout = "2006-01-02 15:04:05"

// FieldType is one of the closed set of storage variants. SQLType names the
// column type in the backing table; Encode translates an in-memory value to
// its storage representation and Decode translates it back.
type FieldType struct {
	SQLType string
	Encode  func(v any) (any, error)
	Decode  func(v any) (any, error)
}

// The supported field variants. Booleans are stored as integers, timestamps
// as text in TimeLayout, and JSON values as serialized text.
var (
	Text = FieldType{
		SQLType: "text",
		Encode: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("text field: expected string, got %T", v)
			}
			return s, nil
		},
		Decode: func(v any) (any, error) {
			return asString(v)
		},
	}

	Integer = FieldType{
		SQLType: "integer",
		Encode: func(v any) (any, error) {
			switch n := v.(type) {
			case int:
				return int64(n), nil
			case int64:
				return n, nil
			default:
				return nil, fmt.Errorf("integer field: expected int, got %T", v)
			}
		},
		Decode: func(v any) (any, error) {
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("integer field: expected int64, got %T", v)
			}
			return n, nil
		},
	}

	Boolean = FieldType{
		SQLType: "integer",
		Encode: func(v any) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("boolean field: expected bool, got %T", v)
			}
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		},
		Decode: func(v any) (any, error) {
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("boolean field: expected int64, got %T", v)
			}
			return n != 0, nil
		},
	}

	Timestamp = FieldType{
		SQLType: "timestamp",
		Encode: func(v any) (any, error) {
			t, ok := v.(time.Time)
			if !ok {
				return nil, fmt.Errorf("timestamp field: expected time.Time, got %T", v)
			}
			return t.Format(TimeLayout), nil
		},
		Decode: func(v any) (any, error) {
			// The sqlite driver returns time.Time for columns declared
			// "timestamp"; raw text is handled for other drivers and tools.
			if t, ok := v.(time.Time); ok {
				return t, nil
			}
			s, err := asString(v)
			if err != nil {
				return nil, fmt.Errorf("timestamp field: %w", err)
			}
			t, err := time.Parse(TimeLayout, s)
			if err != nil {
				return nil, fmt.Errorf("timestamp field: %w", err)
			}
			return t, nil
		},
	}

	JSON = FieldType{
		SQLType: "text",
		Encode: func(v any) (any, error) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("json field: %w", err)
			}
			return string(data), nil
		},
		Decode: func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, fmt.Errorf("json field: %w", err)
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, fmt.Errorf("json field: %w", err)
			}
			return out, nil
		},
	}
)

// Field declares one column: a name, a storage variant, and an optional
// constraint qualifier appended to the column definition (e.g. "unique").
type Field struct {
	Name      string
	Type      FieldType
	Qualifier string
}

func (f Field) columnDef() string {
	def := f.Name + " " + f.Type.SQLType
	if f.Qualifier != "" {
		def += " " + f.Qualifier
	}
	return def
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected text, got %T", v)
	}
}
