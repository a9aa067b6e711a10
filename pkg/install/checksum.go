package install

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/zeebo/blake3"
)

// newHasher returns a hash for the published algorithm, or nil when the
// algorithm is not one we can verify.
func newHasher(algorithm string) hash.Hash {
	switch algorithm {
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	case "blake3":
		return blake3.New()
	default:
		return nil
	}
}

func verifyDigest(h hash.Hash, want *types.Checksum) error {
	got := hex.EncodeToString(h.Sum(nil))
	if got != want.Hex {
		return fmt.Errorf("%w: %s checksum mismatch (expected %s, got %s)",
			types.ErrCorruptArtifact, want.Algorithm, want.Hex, got)
	}
	return nil
}
