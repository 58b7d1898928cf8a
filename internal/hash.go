package internal

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FastHash is a high-performance non-cryptographic hash function. Cerberus
// uses it to fingerprint captcha answers in logs and attempt records so
// that the cleartext answer never leaves the flow that generated it.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}
