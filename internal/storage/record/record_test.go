package record

import (
	"encoding/json"
	"testing"
)

func TestRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   []byte
		wantEnc string
	}{
		{"text", "user:1", []byte("alice"), ""},
		{"empty value", "k", []byte{}, ""},
		{"binary value", "blob", []byte{0xff, 0x00, 0xfe}, EncodingBase64},
		{"binary key", string([]byte{0xc3, 0x28}), []byte("v"), EncodingBase64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.key, tt.value)
			if r.Encoding != tt.wantEnc {
				t.Errorf("Encoding = %q, want %q", r.Encoding, tt.wantEnc)
			}

			data, err := json.Marshal(r)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var back Record
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}

			key, value, err := back.Decode()
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if key != tt.key || string(value) != string(tt.value) {
				t.Errorf("Decode() = (%q, %q), want (%q, %q)", key, value, tt.key, tt.value)
			}
		})
	}
}

func TestRecord_DecodeErrors(t *testing.T) {
	bad := []Record{
		{Key: "!!", Value: "", Encoding: EncodingBase64},
		{Key: "a2V5", Value: "!!", Encoding: EncodingBase64},
		{Key: "k", Value: "v", Encoding: "rot13"},
	}
	for _, r := range bad {
		if _, _, err := r.Decode(); err == nil {
			t.Errorf("Decode(%+v) expected error", r)
		}
	}
}
