package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/record"
)

// Payload is the shape of the listing response body.
type Payload int

const (
	// PayloadArray is a bare JSON array of records.
	PayloadArray Payload = iota
	// PayloadEnvelope is an object with the records under "data".
	PayloadEnvelope
)

func (p Payload) String() string {
	if p == PayloadEnvelope {
		return config.PayloadEnvelope
	}
	return config.PayloadArray
}

// ParsePayload maps a config value to a Payload.
func ParsePayload(s string) (Payload, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", config.PayloadArray:
		return PayloadArray, nil
	case config.PayloadEnvelope:
		return PayloadEnvelope, nil
	}
	return PayloadArray, fmt.Errorf("unknown payload contract %q", s)
}

type envelope struct {
	Data *[]record.Record `json:"data"`
}

func decodePayload(body []byte, p Payload) ([]record.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body, expected %s payload", p)
	}

	switch p {
	case PayloadEnvelope:
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("expected %s payload {\"data\": [...]}, got %s", p, describe(trimmed))
		}
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", p, err)
		}
		if env.Data == nil {
			return nil, fmt.Errorf("expected %s payload, \"data\" is missing or null", p)
		}
		return *env.Data, nil
	default:
		if trimmed[0] != '[' {
			return nil, fmt.Errorf("expected %s payload, got %s", p, describe(trimmed))
		}
		var records []record.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", p, err)
		}
		return records, nil
	}
}

func describe(body []byte) string {
	switch body[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 'n':
		return "null"
	}
	return "a scalar"
}
