package persistence

import (
	"bytes"
	"encoding/gob"

	"github.com/gigguin/bookflow/pkg/api"
)

// EncodePipeline serializes a pipeline record using encoding/gob.
// The gob payload is the canonical storage format for the binary
// stores (Redis, Mongo); the SQL stores keep it alongside a few
// indexed columns.
func EncodePipeline(p *api.Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePipeline deserializes a pipeline record produced by
// EncodePipeline.
func DecodePipeline(data []byte) (*api.Pipeline, error) {
	var p api.Pipeline
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
