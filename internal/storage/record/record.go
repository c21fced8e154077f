// Package record defines the JSON form of a persisted key-value pair.
//
// Keys and values that are valid UTF-8 are stored as JSON strings. Anything
// else is base64-encoded and the record is flagged, so binary payloads
// survive a round trip through encoding/json.
package record

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// EncodingBase64 marks a record whose key and value are base64 encoded.
const EncodingBase64 = "base64"

// Record is one persisted key-value pair.
type Record struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Encoding string `json:"encoding,omitempty"`
}

// New encodes a key-value pair.
func New(key string, value []byte) Record {
	if utf8.ValidString(key) && utf8.Valid(value) {
		return Record{Key: key, Value: string(value)}
	}
	return Record{
		Key:      base64.StdEncoding.EncodeToString([]byte(key)),
		Value:    base64.StdEncoding.EncodeToString(value),
		Encoding: EncodingBase64,
	}
}

// Decode returns the key and value of r.
func (r Record) Decode() (string, []byte, error) {
	switch r.Encoding {
	case "":
		return r.Key, []byte(r.Value), nil
	case EncodingBase64:
		key, err := base64.StdEncoding.DecodeString(r.Key)
		if err != nil {
			return "", nil, fmt.Errorf("record: decode key: %w", err)
		}
		value, err := base64.StdEncoding.DecodeString(r.Value)
		if err != nil {
			return "", nil, fmt.Errorf("record: decode value: %w", err)
		}
		return string(key), value, nil
	default:
		return "", nil, fmt.Errorf("record: unknown encoding %q", r.Encoding)
	}
}
