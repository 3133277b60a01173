package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Tags maps tag names to string or int64 values.
type Tags map[string]interface{}

func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// NormalizeTags converts decoded JSON values into the two supported tag
// types. Integral floats and json.Number values become int64; anything
// that is neither a string nor an integer is rejected.
func NormalizeTags(raw map[string]interface{}) (Tags, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(Tags, len(raw))
	for k, v := range raw {
		if k == "" {
			return nil, fmt.Errorf("%w: empty tag name", ErrInvalidTags)
		}
		nv, err := normalizeTagValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q", err, k)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeTagValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || val > math.MaxInt64 || val < math.MinInt64 {
			return nil, ErrInvalidTags
		}
		return int64(val), nil
	case json.Number:
		i, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil {
			return nil, ErrInvalidTags
		}
		return i, nil
	default:
		return nil, ErrInvalidTags
	}
}

// EncodeTags renders tags as a JSON document; nil tags encode to nil.
func EncodeTags(t Tags) ([]byte, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// DecodeTags parses a stored JSON document keeping integers exact.
func DecodeTags(data []byte) (Tags, error) {
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return NormalizeTags(raw)
}

// ParseTagPairs parses the "k=v,k2=v2" shorthand accepted on the command
// line. Values that parse as integers are stored as integers.
func ParseTagPairs(s string) (Tags, error) {
	out := Tags{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", ErrInvalidTags, pair)
		}
		value = strings.TrimSpace(value)
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			out[key] = i
		} else {
			out[key] = value
		}
	}
	return out, nil
}
