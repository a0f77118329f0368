package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
)

func paths(fields []FieldDescriptor) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Path)
	}
	return out
}

func byPath(fields []FieldDescriptor, path string) (FieldDescriptor, bool) {
	for _, f := range fields {
		if f.Path == path {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

func TestInferEmptySamples(t *testing.T) {
	fields, err := Infer(nil)
	require.Error(t, err)
	assert.Nil(t, fields)
	assert.True(t, errors.Is(err, ErrNoSamples))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = InferJSON([]json.RawMessage{})
	assert.True(t, errors.Is(err, ErrNoSamples))
}

func TestInferNestedStructure(t *testing.T) {
	samples := []json.RawMessage{
		json.RawMessage(`{"level":"ERROR","user":{"id":7,"tags":["a","b"]},"items":[{"sku":"x1","qty":2}],"ok":true,"err":null}`),
	}

	fields, err := InferJSON(samples)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"level",
		"user", "user.id", "user.tags", "user.tags[0]",
		"items", "items[0].sku", "items[0].qty",
		"ok", "err",
	}, paths(fields))

	tests := map[string]string{
		"level":        TypeString,
		"user":         TypeObject,
		"user.id":      TypeNumber,
		"user.tags":    TypeArray,
		"user.tags[0]": TypeString,
		"items":        TypeArray,
		"items[0].sku": TypeString,
		"ok":           TypeBoolean,
		"err":          TypeNull,
	}
	for path, want := range tests {
		f, ok := byPath(fields, path)
		require.True(t, ok, path)
		assert.Equal(t, []string{want}, f.Types, path)
	}

	id, _ := byPath(fields, "user.id")
	assert.Equal(t, float64(7), id.Example)
}

func TestInferUnionsTypesAndKeepsFirstExample(t *testing.T) {
	samples := []interface{}{
		map[string]interface{}{"status": 200, "msg": "ok"},
		map[string]interface{}{"status": "timeout", "extra": 1},
		map[string]interface{}{"status": nil},
	}

	fields, err := Infer(samples)
	require.NoError(t, err)

	status, ok := byPath(fields, "status")
	require.True(t, ok)
	assert.Equal(t, []string{TypeNumber, TypeString, TypeNull}, status.Types)
	assert.Equal(t, float64(200), status.Example)

	// One descriptor per path across all samples.
	assert.Len(t, fields, 3)
	assert.ElementsMatch(t, []string{"msg", "status", "extra"}, paths(fields))
}

func TestInferArrayProbesFirstElementOnly(t *testing.T) {
	fields, err := InferJSON([]json.RawMessage{
		json.RawMessage(`{"items":[{"a":1},{"b":2}]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"items", "items[0].a"}, paths(fields))
}

func TestInferScalarSample(t *testing.T) {
	fields, err := Infer([]interface{}{"just text"})
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "", fields[0].Path)
	assert.Equal(t, []string{TypeString}, fields[0].Types)
}

func TestInferRejectsInvalidJSON(t *testing.T) {
	_, err := InferJSON([]json.RawMessage{json.RawMessage(`{"a":`)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	assert.False(t, errors.Is(err, ErrNoSamples))
}
