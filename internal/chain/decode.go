package chain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The wallet bridge returns contract results as loosely typed JSON: numbers
// arrive as numerics or decimal strings depending on width. Field values are
// coerced explicitly so a malformed record is a decoding error, never a
// silently wrong value.

func coerceUint64(raw json.RawMessage, field string) (uint64, error) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		v, convErr := strconv.ParseUint(num.String(), 10, 64)
		if convErr != nil {
			return 0, fmt.Errorf("decode %s: %w", field, convErr)
		}
		return v, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("decode %s: %w", field, err)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", field, err)
	}
	return v, nil
}

func coerceInt(raw json.RawMessage, field string) (int, error) {
	v, err := coerceUint64(raw, field)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func coerceString(raw json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode %s: %w", field, err)
	}
	return s, nil
}

func coerceBool(raw json.RawMessage, field string) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("decode %s: %w", field, err)
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("decode %s: unexpected value %q", field, s)
	}
}

type rawRecord map[string]json.RawMessage

func (r rawRecord) field(name string) (json.RawMessage, error) {
	raw, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("missing field %s", name)
	}
	return raw, nil
}

func (r rawRecord) uint64Field(name string) (uint64, error) {
	raw, err := r.field(name)
	if err != nil {
		return 0, err
	}
	return coerceUint64(raw, name)
}

func (r rawRecord) intField(name string) (int, error) {
	raw, err := r.field(name)
	if err != nil {
		return 0, err
	}
	return coerceInt(raw, name)
}

func (r rawRecord) stringField(name string) (string, error) {
	raw, err := r.field(name)
	if err != nil {
		return "", err
	}
	return coerceString(raw, name)
}

func (r rawRecord) boolField(name string) (bool, error) {
	raw, err := r.field(name)
	if err != nil {
		return false, err
	}
	return coerceBool(raw, name)
}
