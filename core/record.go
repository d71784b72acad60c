package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Record is a plain backend entity, as consumed and produced by the resource
// and model layers.
type Record map[string]any

func (r Record) String(key string) string {
	value, ok := r[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func (r Record) Int(key string) int {
	switch typed := r[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0
		}
		return int(parsed)
	default:
		return 0
	}
}

func (r Record) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch typed := r[key].(type) {
	case map[string]string:
		for k, v := range typed {
			out[k] = v
		}
	case map[string]any:
		for k, v := range typed {
			if v == nil {
				out[k] = ""
				continue
			}
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func (r Record) Map(key string) map[string]any {
	if typed, ok := r[key].(map[string]any); ok {
		return typed
	}
	return map[string]any{}
}

// Time parses backend timestamps. The API mixes plain dates, naive
// timestamps and offsets with six or seven fractional digits.
func (r Record) Time(key string) (time.Time, bool) {
	raw := r.String(key)
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// Outcome tags the result of a create call so callers cannot confuse a
// name collision with a created entity.
type Outcome struct {
	Kind    OutcomeKind
	Payload Record
	Status  int
}

type OutcomeKind string

const (
	OutcomeCreated       OutcomeKind = "created"
	OutcomeAlreadyExists OutcomeKind = "already_exists"
)

func (o Outcome) Created() bool {
	return o.Kind == OutcomeCreated
}

func (o Outcome) AlreadyExists() bool {
	return o.Kind == OutcomeAlreadyExists
}
