// Package codec holds the JSON serializer shared by the cache, the event
// publisher and the consumer so all three agree on one wire format.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ContentType and ContentEncoding describe payloads produced by Marshal.
const (
	ContentType     = "application/json"
	ContentEncoding = "utf-8"
)

// ErrEmptyPayload is returned when Unmarshal receives nothing to decode.
var ErrEmptyPayload = errors.New("codec: empty payload")

// Marshal encodes v as compact JSON.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal decodes data into a new T. Whitespace-only input is rejected.
func Unmarshal[T any](data []byte) (T, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, ErrEmptyPayload
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("codec: unmarshal %T: %w", v, err)
	}
	return v, nil
}
