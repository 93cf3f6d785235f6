package annotator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CoercePayload turns an inbound message payload into a byte buffer.
//
// Accepted shapes: []byte, string (a base64 data URL is decoded, any
// other string is taken verbatim), numeric arrays ([]int, []float64,
// []any as produced by encoding/json), a serialized buffer object
// {"type":"Buffer","data":[...]} and io.Reader. Array elements keep
// only their low 8 bits.
func CoercePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, errors.New("empty payload")
	case []byte:
		return v, nil
	case string:
		return coerceString(v)
	case []int:
		out := make([]byte, len(v))
		for i, n := range v {
			out[i] = byte(n)
		}
		return out, nil
	case []float64:
		out := make([]byte, len(v))
		for i, n := range v {
			out[i] = byte(int64(n))
		}
		return out, nil
	case []any:
		return coerceArray(v)
	case map[string]any:
		if t, _ := v["type"].(string); t == "Buffer" {
			if data, ok := v["data"].([]any); ok {
				return coerceArray(data)
			}
		}
		return nil, errors.New("object payload is not a serialized buffer")
	case io.Reader:
		return io.ReadAll(v)
	}
	return nil, fmt.Errorf("unsupported payload type %T", payload)
}

func coerceString(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i == -1 {
			return nil, errors.New("malformed data URL")
		}
		return base64.StdEncoding.DecodeString(s[i+1:])
	}
	return []byte(s), nil
}

func coerceArray(arr []any) ([]byte, error) {
	out := make([]byte, len(arr))
	for i, el := range arr {
		switch n := el.(type) {
		case float64:
			out[i] = byte(int64(n))
		case int:
			out[i] = byte(n)
		case int64:
			out[i] = byte(n)
		case uint8:
			out[i] = n
		default:
			return nil, fmt.Errorf("array element %d has non-numeric type %T", i, el)
		}
	}
	return out, nil
}
