package pixel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupportedFrame is returned for payloads that are neither a value
// sequence nor a structured frame object
var ErrUnsupportedFrame = errors.New("unsupported pixel frame payload")

// DecodeFrame decodes a host frame payload.
//
// Accepted shapes:
//   - [v0, v1, ...]                      -> FlatFrame
//   - {"0": v0, "1": v1, ...}            -> FlatFrame (serialized typed array)
//   - {"pixels": [...], "rows": ..., ...} -> *StructuredFrame
//
// Entries are coerced the way the host coerces them for bit operations:
// numbers are truncated and wrapped to 32 bits, numeric strings are parsed,
// anything else becomes 0. Entries are never rejected.
func DecodeFrame(raw json.RawMessage) (Frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrUnsupportedFrame
	}

	switch raw[0] {
	case '[':
		values, err := decodeValues(raw)
		if err != nil {
			return nil, err
		}
		return FlatFrame(values), nil
	case '{':
		return decodeObject(raw)
	default:
		return nil, fmt.Errorf("%w: starts with %q", ErrUnsupportedFrame, raw[0])
	}
}

func decodeObject(raw json.RawMessage) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode frame object: %w", err)
	}

	if _, ok := fields["pixels"]; !ok && isIndexed(fields) {
		return FlatFrame(indexedValues(fields)), nil
	}

	frame := &StructuredFrame{
		Rows:       int(int32(coerce(fields["rows"]))),
		Cols:       int(int32(coerce(fields["cols"]))),
		Layout:     Layout(coerceString(fields["layout"])),
		Brightness: coerceFloat(fields["brightness"]),
	}

	if pixels := bytes.TrimSpace(fields["pixels"]); len(pixels) > 0 {
		switch pixels[0] {
		case '[':
			values, err := decodeValues(pixels)
			if err != nil {
				return nil, err
			}
			frame.Pixels = values
		case '{':
			var indexed map[string]json.RawMessage
			if err := json.Unmarshal(pixels, &indexed); err != nil {
				return nil, fmt.Errorf("failed to decode pixels object: %w", err)
			}
			if isIndexed(indexed) {
				frame.Pixels = indexedValues(indexed)
			}
		}
	}

	return frame, nil
}

func decodeValues(raw json.RawMessage) ([]uint32, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode pixel values: %w", err)
	}

	values := make([]uint32, len(items))
	for i, item := range items {
		values[i] = coerce(item)
	}
	return values, nil
}

// isIndexed reports whether every key is a canonical array index ("0", "1", ...)
func isIndexed(fields map[string]json.RawMessage) bool {
	if len(fields) == 0 {
		return false
	}
	for key := range fields {
		n, err := strconv.ParseUint(key, 10, 32)
		if err != nil || strconv.FormatUint(n, 10) != key {
			return false
		}
	}
	return true
}

func indexedValues(fields map[string]json.RawMessage) []uint32 {
	keys := make([]int, 0, len(fields))
	for key := range fields {
		n, _ := strconv.Atoi(key)
		keys = append(keys, n)
	}
	sort.Ints(keys)

	values := make([]uint32, 0, len(keys))
	for _, k := range keys {
		values = append(values, coerce(fields[strconv.Itoa(k)]))
	}
	return values
}

// coerce converts one JSON value to its 32-bit integer form
func coerce(raw json.RawMessage) uint32 {
	return wrap32(coerceFloat(raw))
}

func coerceFloat(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}

	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if f, err := parseNumeric(s); err == nil {
			return f
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

func parseNumeric(s string) (float64, error) {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		return float64(n), err
	}
	return strconv.ParseFloat(s, 64)
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// wrap32 truncates toward zero and wraps modulo 2^32; NaN and
// infinities become 0
func wrap32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Mod(math.Trunc(f), 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return uint32(f)
}
