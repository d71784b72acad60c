package response

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/goliatone/go-isogeo/core"
)

// Payload is a validated response body. JSON numbers are kept as json.Number.
type Payload struct {
	status int
	raw    []byte
	value  any
}

func (p Payload) StatusCode() int {
	return p.status
}

func (p Payload) Raw() []byte {
	return p.raw
}

func (p Payload) Value() any {
	return p.value
}

func (p Payload) IsEmpty() bool {
	return p.value == nil
}

// Record returns the payload as one entity. ok is false for lists and scalars.
func (p Payload) Record() (core.Record, bool) {
	typed, ok := p.value.(map[string]any)
	if !ok {
		return nil, false
	}
	return core.Record(typed), true
}

// Records returns the payload as a list of entities, skipping non-object items.
func (p Payload) Records() ([]core.Record, bool) {
	items, ok := p.value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]core.Record, 0, len(items))
	for _, item := range items {
		if typed, ok := item.(map[string]any); ok {
			out = append(out, core.Record(typed))
		}
	}
	return out, true
}

// Decode maps the payload onto target using mapstructure tags, the same keys
// the backend uses in its JSON documents.
func (p Payload) Decode(target any) error {
	return Decode(p.value, target)
}

func Decode(input any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonNumberHook,
			mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
		),
	})
	if err != nil {
		return fmt.Errorf("response: build decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("response: decode payload: %w", err)
	}
	return nil
}

func jsonNumberHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	number, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number.Int64()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := number.Int64()
		if err != nil {
			return nil, err
		}
		return uint64(parsed), nil
	case reflect.Float32, reflect.Float64:
		return number.Float64()
	case reflect.String:
		return number.String(), nil
	default:
		return data, nil
	}
}
