// Package codec converts field values and entity identifiers between their
// in-memory form and the text form kept in the field_value and entity_id
// columns. Scalars are stored in their canonical text form so substring
// search works against the raw text; everything else is JSON-encoded and
// flagged as serialized, and decoding is the exact inverse.
package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EncodeValue returns the storable text form of v and whether it had to be
// opaquely serialized. Scalars (strings, booleans, integers, floats) are
// stored in canonical text form with serialized=false; structured values
// are JSON-encoded with serialized=true.
func EncodeValue(v any) (text string, serialized bool, err error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, false, nil
	case bool:
		return strconv.FormatBool(val), false, nil
	case int:
		return strconv.FormatInt(int64(val), 10), false, nil
	case int8:
		return strconv.FormatInt(int64(val), 10), false, nil
	case int16:
		return strconv.FormatInt(int64(val), 10), false, nil
	case int32:
		return strconv.FormatInt(int64(val), 10), false, nil
	case int64:
		return strconv.FormatInt(val, 10), false, nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), false, nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), false, nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), false, nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), false, nil
	case uint64:
		return strconv.FormatUint(val, 10), false, nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), false, nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), false, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode field value: %w", err)
		}
		return string(data), true, nil
	}
}

// DecodeValue reverses EncodeValue. Serialized values decode to their
// JSON-generic form (maps, slices, strings, numbers); plain scalars are
// returned as the stored text.
func DecodeValue(text string, serialized bool) (any, error) {
	if !serialized {
		return text, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("failed to decode field value: %w", err)
	}
	return v, nil
}

// EncodeID encodes an entity identifier, scalar or composite, to its
// storable text form.
func EncodeID(id any) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("failed to encode entity id: %w", err)
	}
	return string(data), nil
}

// DecodeID reverses EncodeID.
func DecodeID(text string) (any, error) {
	var id any
	if err := json.Unmarshal([]byte(text), &id); err != nil {
		return nil, fmt.Errorf("failed to decode entity id: %w", err)
	}
	return id, nil
}
