package nvbox

import (
	"crypto/md5" //nolint:gosec // md5 is intentionally supported
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
)

// Checksum hashes the whole content of flash. Supported algorithms are
// "md5", "sha256" and "xxhash".
func Checksum(flash NorFlash, algorithm string) (string, error) {
	var h hash.Hash
	switch algorithm {
	case "md5":
		h = md5.New() //nolint:gosec // md5 intentionally supported
	case "sha256":
		h = sha256.New()
	case "xxhash":
		h = xxhash.New()
	default:
		return "", fmt.Errorf("nvbox: unsupported hash algorithm %q: %w", algorithm, ErrNotSupported)
	}

	err := WalkBlocks(flash, nil, func(_ int, _ uint32, data []byte) error {
		_, err := h.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
