// Package adaptive provides authenticated encryption with automatic
// algorithm selection.
//
// Supported algorithms:
//
//   - AES-256-GCM: preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305 and XChaCha20-Poly1305: everywhere else
//
// Ciphertexts carry their random nonce as a prefix. Keys for a specific
// purpose are derived from a master secret with DeriveKey (HKDF-SHA256).
//
// Usage:
//
//	key, err := adaptive.DeriveKey(secret, "kvmesh snapshot v1")
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plain, err := c.Decrypt(sealed, aad)
//
// A Cipher is safe for concurrent use.
package adaptive
