package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-insights/internal/domain"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrMalformedResponse is returned when the model text is not JSON of a recognised shape.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Diagnostics records what the decoder dropped.
type Diagnostics struct {
	// UnknownFields counts keys that are not transaction fields, after trimming.
	UnknownFields map[string]int
	// SkippedElements counts array elements that were not JSON objects.
	SkippedElements int
}

// Decode parses the model's text into raw transaction records. It accepts a
// JSON array of objects, a single object, or an object wrapping the array
// under "transactions", optionally surrounded by Markdown fences or prose.
// Field names are trimmed. Values keep their JSON text; null, objects and
// arrays are treated as absent.
func Decode(raw string) ([]domain.RawTransaction, Diagnostics, error) {
	diag := Diagnostics{UnknownFields: map[string]int{}}

	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, diag, ErrEmptyResponse
	}

	elements, err := topLevelElements([]byte(clean))
	if err != nil {
		return nil, diag, err
	}

	out := make([]domain.RawTransaction, 0, len(elements))
	for _, el := range elements {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(el, &obj); err != nil || obj == nil {
			diag.SkippedElements++
			continue
		}
		out = append(out, decodeRecord(obj, diag.UnknownFields))
	}

	return out, diag, nil
}

func topLevelElements(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, ErrEmptyResponse
	case trimmed[0] == '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return arr, nil
	case trimmed[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if inner, ok := obj["transactions"]; ok {
			var arr []json.RawMessage
			if err := json.Unmarshal(inner, &arr); err != nil {
				return nil, fmt.Errorf("%w: 'transactions' is not an array", ErrMalformedResponse)
			}
			return arr, nil
		}
		return []json.RawMessage{trimmed}, nil
	default:
		return nil, fmt.Errorf("%w: expected JSON array or object", ErrMalformedResponse)
	}
}

func decodeRecord(obj map[string]json.RawMessage, unknown map[string]int) domain.RawTransaction {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// Deterministic when two keys trim to the same name.
	sort.Strings(keys)

	var rec domain.RawTransaction
	for _, k := range keys {
		name := strings.TrimSpace(k)
		field := rec.Lookup(name)
		if field == nil {
			unknown[name]++
			continue
		}
		*field = fieldFromJSON(obj[k])
	}
	return rec
}

func fieldFromJSON(raw json.RawMessage) domain.Field {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return domain.Field{}
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return domain.Field{}
		}
		return domain.Text(s)
	case 'n', '{', '[':
		return domain.Field{}
	default:
		// Numbers and booleans keep their literal text.
		return domain.Text(string(v))
	}
}

// cleanModelJSON strips Markdown fences and any prose around the JSON payload.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	first, last := "[", "]"
	arr, obj := strings.Index(s, "["), strings.Index(s, "{")
	if arr == -1 || (obj != -1 && obj < arr) {
		first, last = "{", "}"
	}
	if start := strings.Index(s, first); start != -1 {
		if end := strings.LastIndex(s, last); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
