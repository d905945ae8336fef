package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/slyt3/Quorum/internal/assert"
	"github.com/ucarion/jcs"
)

// GenesisPrevHash links the first journal entry.
var GenesisPrevHash = strings.Repeat("0", 64)

// CalculateEntryHash hashes a journal payload chained to the previous entry.
// The payload is canonicalized with RFC 8785 (JCS) so key order and number
// formatting never change the hash.
func CalculateEntryHash(prevHash string, payload interface{}) (string, error) {
	if err := assert.Check(len(prevHash) == sha256.Size*2, "prev_hash must be a hex sha256: %q", prevHash); err != nil {
		return "", err
	}
	if err := assert.Check(payload != nil, "payload must not be nil"); err != nil {
		return "", err
	}

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var normalized interface{}
	if err := json.Unmarshal(jsonBytes, &normalized); err != nil {
		return "", err
	}
	canonicalJSON, err := jcs.Format(normalized)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	hasher.Write([]byte(prevHash))
	hasher.Write([]byte(canonicalJSON))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
