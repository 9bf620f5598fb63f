package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is a normalized response body.
//
// Items is filled from, in order of precedence: "results", "data.results",
// "data" when it is an array, "data" when it is an object (as a single
// item), or a top-level array. Record holds "data" when it is an object, or
// the whole body when it carries neither field.
type Envelope struct {
	Items  []json.RawMessage
	Record json.RawMessage
	Next   string
	Total  int
}

type link struct {
	Rel string `json:"rel"`
	URI string `json:"uri"`
}

// ParseEnvelope normalizes a JSON response body. An empty body yields an
// empty envelope.
func ParseEnvelope(body []byte) (*Envelope, error) {
	body = bytes.TrimSpace(body)
	env := &Envelope{}
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return env, nil
	}

	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &env.Items); err != nil {
			return nil, fmt.Errorf("decode array body: %w", err)
		}
		env.Total = len(env.Items)
		return env, nil
	case '{':
	default:
		return nil, fmt.Errorf("unexpected body starting with %q", body[0])
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode object body: %w", err)
	}

	if raw, ok := fields["links"]; ok {
		var links []link
		if json.Unmarshal(raw, &links) == nil {
			for _, l := range links {
				if l.Rel == "next" {
					env.Next = l.URI
				}
			}
		}
	}
	if raw, ok := fields["totalCount"]; ok {
		_ = json.Unmarshal(raw, &env.Total)
	}

	if raw, ok := fields["results"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &env.Items); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		env.fillTotal()
		return env, nil
	}

	raw, ok := fields["data"]
	if !ok {
		env.Record = json.RawMessage(body)
		return env, nil
	}
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return env, nil
	}

	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &env.Items); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	case '{':
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		if results, ok := inner["results"]; ok && !isNull(results) {
			if err := json.Unmarshal(results, &env.Items); err != nil {
				return nil, fmt.Errorf("decode data.results: %w", err)
			}
		} else {
			env.Record = raw
			env.Items = []json.RawMessage{raw}
		}
	default:
		return nil, fmt.Errorf("data field is neither array nor object")
	}
	env.fillTotal()
	return env, nil
}

func (e *Envelope) fillTotal() {
	if e.Total < len(e.Items) {
		e.Total = len(e.Items)
	}
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// Decode unmarshals every item into T. A nil or empty Items yields an empty,
// non-nil slice.
func Decode[T any](env *Envelope) ([]T, error) {
	out := make([]T, 0, len(env.Items))
	for i, raw := range env.Items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
