package replay

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/roach88/rewind/internal/logio"
)

// digestDomain prefixes every log digest. The version suffix leaves room
// for a different encoding later.
const digestDomain = "rewind/log/v1"

// Digest returns a hex SHA-256 identifying the session's log. It hashes the
// binary encoding, so a log has the same digest whichever format it was
// read from.
func Digest(s *Session) (string, error) {
	var buf bytes.Buffer
	if err := Emit(s, logio.NewWriter(logio.FormatBinary, &buf)); err != nil {
		return "", err
	}
	return hashWithDomain(digestDomain, buf.Bytes()), nil
}

// hashWithDomain computes SHA256(domain || 0x00 || data). The separator
// keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
