package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// MaxTokenLength bounds the client supplied token, matching the key column.
const MaxTokenLength = 255

// Checksum fingerprints a request as sha256(method | path | body). JSON
// bodies are re-encoded canonically first, so key order and whitespace do
// not change the checksum.
func Checksum(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(normalizeBody(body))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return trimmed
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return trimmed
	}
	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return out
}
