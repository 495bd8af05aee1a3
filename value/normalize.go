package value

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Composite holds the text rendering of an array, JSON document or record
// exactly as the source delivered it.
type Composite string

// Date is a calendar date without time of day.
type Date time.Time

// Clock is a time of day without a date.
type Clock time.Time

// Timestamp is a date and time without a zone.
type Timestamp time.Time

const (
	dateLayout      = "2006-01-02"
	clockLayout     = "15:04:05.999999"
	timestampLayout = "2006-01-02T15:04:05.999999"
	zonedLayout     = "2006-01-02T15:04:05.999999999Z07:00"
)

// Normalize maps a source value to one the SQLite driver stores natively.
// It never fails: unknown kinds pass through unchanged.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return val.InexactFloat64()
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return val.InexactFloat64()
	case decimal.NullDecimal:
		if !val.Valid {
			return nil
		}
		return val.Decimal.InexactFloat64()
	case Composite:
		return string(val)
	case time.Time:
		return val.Format(zonedLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(zonedLayout)
	case Date:
		return time.Time(val).Format(dateLayout)
	case Clock:
		return time.Time(val).Format(clockLayout)
	case Timestamp:
		return time.Time(val).Format(timestampLayout)
	case []byte:
		if val == nil {
			return nil
		}
		return DecodeUTF8(val)
	case uint64:
		if val > math.MaxInt64 {
			return strconv.FormatUint(val, 10)
		}
		return int64(val)
	case string, bool, int64, float64, int, int32, float32:
		return val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map) && rv.IsNil() {
			return nil
		}
		return renderComposite(v)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

// NormalizeRow normalizes every value of row in place and returns it.
func NormalizeRow(row []any) []any {
	for i, v := range row {
		row[i] = Normalize(v)
	}
	return row
}

// DecodeUTF8 decodes b as UTF-8, replacing every invalid byte with U+FFFD.
func DecodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	// the UTF-8 decoder substitutes U+FFFD for ill-formed input and never fails
	out, _, _ := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	return string(out)
}

func renderComposite(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
