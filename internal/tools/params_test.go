package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStringParam(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		required bool
		want     string
		wantErr  string
	}{
		{"present", map[string]interface{}{"k": "v"}, true, "v", ""},
		{"number coerced", map[string]interface{}{"k": float64(42)}, true, "42", ""},
		{"missing optional", map[string]interface{}{}, false, "", ""},
		{"null optional", map[string]interface{}{"k": nil}, false, "", ""},
		{"missing required", map[string]interface{}{}, true, "", "missing required argument: k"},
		{"wrong type", map[string]interface{}{"k": true}, false, "", "expected string, got bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetStringParam(tt.args, "k", tt.required)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetIntParam(t *testing.T) {
	tests := []struct {
		name        string
		val         interface{}
		want        int
		wantPresent bool
		wantErr     string
	}{
		{"json number", float64(7), 7, true, ""},
		{"int", 3, 3, true, ""},
		{"numeric string", "12", 12, true, ""},
		{"absent", nil, 0, false, ""},
		{"fraction", 1.5, 0, true, "expected an integer"},
		{"bad string", "ten", 0, true, "invalid value for argument n"},
		{"wrong type", []interface{}{}, 0, true, "expected number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{}
			if tt.val != nil {
				args["n"] = tt.val
			}
			got, present, err := GetIntParam(args, "n", false)
			assert.Equal(t, tt.wantPresent, present)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, _, err := GetIntParam(map[string]interface{}{}, "n", true)
	assert.EqualError(t, err, "missing required argument: n")
}

func TestGetObjectAndArrayParams(t *testing.T) {
	args := map[string]interface{}{
		"obj": map[string]interface{}{"a": 1.0},
		"arr": []interface{}{"x"},
	}

	obj, err := GetObjectParam(args, "obj", true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obj["a"])

	_, err = GetObjectParam(args, "arr", false)
	assert.ErrorContains(t, err, "expected object")

	arr, err := GetArrayParam(args, "arr", true)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x"}, arr)

	_, err = GetArrayParam(args, "obj", false)
	assert.ErrorContains(t, err, "expected array")

	_, err = GetArrayParam(args, "missing", true)
	assert.EqualError(t, err, "missing required argument: missing")
}

func TestAnnotations(t *testing.T) {
	ro := ReadOnlyAnnotations("List")
	assert.True(t, ro.ReadOnlyHint)
	assert.True(t, ro.IdempotentHint)
	require.NotNil(t, ro.OpenWorldHint)
	assert.False(t, *ro.OpenWorldHint)

	q := QueryAnnotations("Fetch")
	assert.True(t, q.ReadOnlyHint)
	assert.False(t, q.IdempotentHint)

	an := AnalysisAnnotations("Infer")
	require.NotNil(t, an.DestructiveHint)
	assert.False(t, *an.DestructiveHint)
	assert.Equal(t, "Infer", an.Title)
}
