// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/json"
	"fmt"

	"github.com/ugorji/go/codec"
)

// cborHandle defines shared CBOR codec configuration.
// Canonical ordering keeps the encoding deterministic for a fixed metadata value.
var cborHandle = func() *codec.CborHandle {
	handle := new(codec.CborHandle)
	handle.Canonical = true

	return handle
}()

// Metadata describes structured inscription metadata: a string-keyed map
// over a closed set of value kinds (nil, bool, string, integers, floats,
// byte arrays, arrays and nested maps). The single well-typed surface
// handed to the CBOR encoder.
type Metadata map[string]any

// Validate returns error if any nested value is outside the allowed kinds.
func (m Metadata) Validate() error {
	for key, value := range m {
		if err := validateValue(value); err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
	}

	return nil
}

// validateValue checks one metadata value against the allowed kinds.
func validateValue(value any) error {
	switch typed := value.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []any:
		for idx, el := range typed {
			if err := validateValue(el); err != nil {
				return fmt.Errorf("index %d: %w", idx, err)
			}
		}

		return nil
	case map[string]any:
		return Metadata(typed).Validate()
	case Metadata:
		return typed.Validate()
	default:
		return fmt.Errorf("unsupported metadata value type %T", value)
	}
}

// EncodeCBOR returns Metadata encoded to canonical CBOR.
func (m Metadata) EncodeCBOR() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var data []byte
	if err := codec.NewEncoderBytes(&data, cborHandle).Encode(map[string]any(m)); err != nil {
		return nil, err
	}

	return data, nil
}

// DecodeCBORMetadata parses CBOR bytes back into Metadata.
func DecodeCBORMetadata(data []byte) (Metadata, error) {
	var value map[string]any
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(&value); err != nil {
		return nil, err
	}

	return Metadata(value), nil
}

// MetadataFromJSON converts a JSON object into Metadata.
func MetadataFromJSON(data []byte) (Metadata, error) {
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}

	metadata := Metadata(value)
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	return metadata, nil
}
