package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintDomain separates analysis input hashes from any other content hash.
const fingerprintDomain = "twodoracle/analysis-input/v1"

// Fingerprint returns a stable content hash of the input. Analyze is pure, so
// equal fingerprints always map to equal outputs.
func Fingerprint(in Input) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis input: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
