package protocol

import (
	"encoding/json"
	"math"
	"reflect"
)

// Int reads payload element i as an integer. JSON numbers are accepted when
// they carry no fractional part.
func (m Message) Int(i int) (int, error) {
	v, err := m.at(i)
	if err != nil {
		return 0, err
	}
	n, ok := toInt(v)
	if !ok {
		return 0, &PayloadError{Op: m.op, Index: i, Reason: "not an integer"}
	}
	return n, nil
}

// Float reads payload element i as a float64
func (m Message) Float(i int) (float64, error) {
	v, err := m.at(i)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, &PayloadError{Op: m.op, Index: i, Reason: "not a number"}
	}
	return f, nil
}

// Bool reads payload element i as a bool
func (m Message) Bool(i int) (bool, error) {
	v, err := m.at(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &PayloadError{Op: m.op, Index: i, Reason: "not a bool"}
	}
	return b, nil
}

// String reads payload element i as a string
func (m Message) String(i int) (string, error) {
	v, err := m.at(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &PayloadError{Op: m.op, Index: i, Reason: "not a string"}
	}
	return s, nil
}

// Status reads the reply status stored in the first payload element
func (m Message) Status() (int, error) {
	return m.Int(0)
}

func (m Message) at(i int) (any, error) {
	if i < 0 || i >= len(m.payload) {
		return nil, &Underflow{Op: m.op, Len: len(m.payload), Minimum: i + 1}
	}
	return m.payload[i], nil
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	// every other integer kind NewMessage accepts, named types included
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Uint64 || rv.Kind() == reflect.Uint {
		return float64(rv.Uint()), true
	}
	return 0, false
}
