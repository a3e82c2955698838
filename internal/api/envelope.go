package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type pageEnvelope[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

// decodeList accepts a bare JSON array or a {results: [...]} envelope.
// hasNext reports whether the envelope points at another page.
func decodeList[T any](raw []byte) (items []T, hasNext bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, false, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false, fmt.Errorf("decode list: %w", err)
		}
		return items, false, nil
	}

	var env pageEnvelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, false, fmt.Errorf("decode page: %w", err)
	}
	if env.Results == nil {
		env.Results = []T{}
	}
	return env.Results, env.Next != nil && *env.Next != "", nil
}
