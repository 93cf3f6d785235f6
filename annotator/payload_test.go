package annotator

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoercePayload(t *testing.T) {
	want := []byte{0xff, 0xd8, 0x00, 0x10}

	var fromJSON any
	require.NoError(t, json.Unmarshal([]byte(`[255, 216, 0, 16]`), &fromJSON))
	var bufferObj any
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Buffer","data":[255,216,0,16]}`), &bufferObj))

	cases := map[string]any{
		"bytes":       want,
		"raw string":  string(want),
		"data url":    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(want),
		"int slice":   []int{255, 216, 0, 16},
		"wrapping":    []int{-1, 216, 256, 272},
		"float slice": []float64{255, 216, 0, 16},
		"json array":  fromJSON,
		"buffer obj":  bufferObj,
		"reader":      bytes.NewReader(want),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := CoercePayload(payload)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestCoercePayload_Rejects(t *testing.T) {
	cases := map[string]any{
		"nil":          nil,
		"number":       3.5,
		"plain object": map[string]any{"foo": "bar"},
		"mixed array":  []any{1.0, "two"},
		"bad data url": "data:image/jpeg;base64",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CoercePayload(payload)
			assert.Error(t, err)
		})
	}
}
