package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dmitrijs2005/cerberus/internal/common"
)

// ExtractBearer returns the token of an "Authorization: Bearer <token>"
// header value. The scheme is case-sensitive and exactly one space separates
// it from the token.
func ExtractBearer(header string) (string, error) {
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok || token == "" || strings.TrimSpace(token) != token {
		return "", common.ErrTokenMalformed
	}
	return token, nil
}

// Fingerprint is the lowercase hex SHA-256 of token, the only form in which
// tokens are persisted.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
