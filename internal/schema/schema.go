// Package schema infers a field catalogue from sample log records.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	apperrors "github.com/tareqmamari/loglens/internal/errors"
)

// Type names reported for observed values.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeNull    = "null"
	TypeArray   = "array"
	TypeObject  = "object"
)

// ErrNoSamples is returned when inference is requested over an empty sample set.
var ErrNoSamples = apperrors.New(apperrors.CodeInvalidInput, apperrors.ClientError, "no samples provided to analyze").
	WithSuggestion("Call fetchSamples first and pass its samples")

// FieldDescriptor describes one field path observed across samples.
type FieldDescriptor struct {
	Path    string      `json:"path"`
	Types   []string    `json:"types"`
	Example interface{} `json:"example"`
}

// Infer walks every sample and returns one descriptor per unique path, in
// first-discovery order. Types are the union across samples and the example
// is the first value seen. Arrays are probed through element 0 only.
func Infer(samples []interface{}) ([]FieldDescriptor, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	raw := make([]json.RawMessage, 0, len(samples))
	for i, s := range samples {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, apperrors.NewInvalidInput(fmt.Sprintf("sample %d is not JSON-encodable: %v", i, err))
		}
		raw = append(raw, b)
	}
	return InferJSON(raw)
}

// InferJSON is Infer over already-encoded samples. Object keys are visited in
// document order.
func InferJSON(samples []json.RawMessage) ([]FieldDescriptor, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	acc := newAccumulator()
	for i, s := range samples {
		if !gjson.ValidBytes(s) {
			return nil, apperrors.NewInvalidInput(fmt.Sprintf("sample %d is not valid JSON", i))
		}
		walk(gjson.ParseBytes(s), "", acc)
	}
	return acc.descriptors(), nil
}

// walk records the children of v under prefix. A scalar at the top level is
// recorded under the empty path.
func walk(v gjson.Result, prefix string, acc *accumulator) {
	if !v.IsObject() && !v.IsArray() {
		if v.Type != gjson.Null {
			acc.add(prefix, typeOf(v), v.Value())
		}
		return
	}

	index := 0
	v.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if v.IsArray() {
			name = strconv.Itoa(index)
			index++
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		switch {
		case value.IsArray():
			acc.add(path, TypeArray, value.Value())
			if first := value.Get("0"); first.Exists() {
				walk(first, path+"[0]", acc)
			}
		case value.IsObject():
			acc.add(path, TypeObject, value.Value())
			walk(value, path, acc)
		default:
			acc.add(path, typeOf(value), value.Value())
		}
		return true
	})
}

func typeOf(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return TypeString
	case gjson.Number:
		return TypeNumber
	case gjson.True, gjson.False:
		return TypeBoolean
	case gjson.Null:
		return TypeNull
	}
	if v.IsArray() {
		return TypeArray
	}
	return TypeObject
}

type accumulator struct {
	order  []string
	fields map[string]*FieldDescriptor
}

func newAccumulator() *accumulator {
	return &accumulator{fields: make(map[string]*FieldDescriptor)}
}

func (a *accumulator) add(path, typ string, example interface{}) {
	fd, ok := a.fields[path]
	if !ok {
		fd = &FieldDescriptor{Path: path, Example: example}
		a.fields[path] = fd
		a.order = append(a.order, path)
	}
	for _, t := range fd.Types {
		if t == typ {
			return
		}
	}
	fd.Types = append(fd.Types, typ)
}

func (a *accumulator) descriptors() []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(a.order))
	for _, p := range a.order {
		out = append(out, *a.fields[p])
	}
	return out
}
