package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"toxref_brick/value"
)

// lift turns a raw driver value into a typed value using the column's database
// type name. Drivers hand back NUMERIC, arrays and JSON as text or bytes and
// dates as time.Time; the type name tells them apart.
func lift(v any, typeName string) any {
	if v == nil {
		return nil
	}

	switch {
	case typeName == "NUMERIC" || typeName == "DECIMAL":
		if s, ok := text(v); ok {
			if d, err := decimal.NewFromString(s); err == nil {
				return d
			}
			// NaN and infinities have no decimal form
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
			return s
		}
	case strings.HasPrefix(typeName, "_"), typeName == "JSON", typeName == "JSONB":
		if s, ok := text(v); ok {
			return value.Composite(s)
		}
	case typeName == "DATE":
		if t, ok := v.(time.Time); ok {
			return value.Date(t)
		}
	case typeName == "TIME" || typeName == "TIMETZ":
		if t, ok := v.(time.Time); ok {
			return value.Clock(t)
		}
	case typeName == "TIMESTAMP" || typeName == "DATETIME":
		if t, ok := v.(time.Time); ok {
			return value.Timestamp(t)
		}
	}
	return v
}

func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return value.DecodeUTF8(s), true
	}
	return "", false
}
