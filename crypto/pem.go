package crypto

import (
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"regexp"
	"strings"
)

var (
	// RFC 7468 labels never contain '-'
	pemBeginMarker = regexp.MustCompile(`-----BEGIN [^-]*-----`)
	pemEndMarker   = regexp.MustCompile(`-----END [^-]*-----`)
)

// DecodePEM strips the PEM markers and whitespace from pemText and returns the
// base64-decoded DER bytes. The block label is not checked.
func DecodePEM(pemText string) ([]byte, error) {
	trimmed := strings.TrimSpace(pemText)
	if block, rest := pem.Decode([]byte(trimmed)); block != nil &&
		strings.HasPrefix(trimmed, "-----BEGIN ") && strings.TrimSpace(string(rest)) == "" {
		return block.Bytes, nil
	}

	// Single-line blocks, mismatched labels, bare base64 and surrounding text end up here
	body := pemBeginMarker.ReplaceAllString(pemText, "")
	body = pemEndMarker.ReplaceAllString(body, "")
	body = strings.Join(strings.Fields(body), "")

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	return der, nil
}

// EncodePEM wraps DER bytes in a PEM block of the given type
func EncodePEM(blockType string, der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  blockType,
		Bytes: der,
	}))
}
