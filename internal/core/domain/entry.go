package domain

import "fmt"

// Default request limits.
const (
	DefaultMaxKeyBytes   = 1024
	DefaultMaxValueBytes = 1 << 20
)

// Entry is a key with its value.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Limits bounds the size of keys and values accepted from clients.
// Zero fields disable the corresponding check.
type Limits struct {
	MaxKeyBytes   int
	MaxValueBytes int
}

// DefaultLimits returns the default request limits.
func DefaultLimits() Limits {
	return Limits{
		MaxKeyBytes:   DefaultMaxKeyBytes,
		MaxValueBytes: DefaultMaxValueBytes,
	}
}

// ValidateKey checks a client supplied key.
func (l Limits) ValidateKey(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if l.MaxKeyBytes > 0 && len(key) > l.MaxKeyBytes {
		return ErrKeyTooLong.WithDetails(fmt.Sprintf("%d bytes, limit %d", len(key), l.MaxKeyBytes))
	}
	return nil
}

// ValidateValue checks a client supplied value.
func (l Limits) ValidateValue(value []byte) error {
	if l.MaxValueBytes > 0 && len(value) > l.MaxValueBytes {
		return ErrValueTooLarge.WithDetails(fmt.Sprintf("%d bytes, limit %d", len(value), l.MaxValueBytes))
	}
	return nil
}
