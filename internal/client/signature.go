package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the api-signature of a request: parameter names sorted
// ascending, each name followed by its value, concatenated and HMAC-SHA256'd
// with the API secret, hex encoded. api-signature itself is never signed.
func Sign(secret string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for k := range params {
		if k == "api-signature" {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, k := range names {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
