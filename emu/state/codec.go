package state

import (
	"encoding/json"
	"io"
)

// Codec encodes and decodes flat state records.
type Codec interface {
	Encode(record map[string]any, w io.Writer) error
	Decode(r io.Reader) (map[string]any, error)
}

// JSONCodec stores records as JSON. Numbers are decoded as json.Number so
// that 64-bit tick counts survive the round trip exactly.
type JSONCodec struct {
}

// NewJSONCodec creates a JSONCodec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode writes the record to w.
func (c JSONCodec) Encode(record map[string]any, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	return encoder.Encode(record)
}

// Decode reads a record from r.
func (c JSONCodec) Decode(r io.Reader) (map[string]any, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	record := map[string]any{}

	err := decoder.Decode(&record)
	if err != nil {
		return nil, err
	}

	return record, nil
}
