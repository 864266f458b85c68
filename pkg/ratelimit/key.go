package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/dentaflow/dentaflow/pkg/clientip"
	"github.com/dentaflow/dentaflow/pkg/entitlement"
)

// Keys longer than this are hashed so Redis keys stay bounded.
const maxKeyLength = 64

// KeyFunc extracts the identity a request is limited by.
type KeyFunc func(*http.Request) string

// KeyByOwner keys on the resolved billing owner, so one clinic hammering
// checkout cannot starve others behind the same NAT.
func KeyByOwner(r *http.Request) string {
	ownerID, ok := entitlement.OwnerIDFromContext(r.Context())
	if !ok {
		return ""
	}
	return "owner:" + ownerID.String()
}

// KeyByIP keys on the client IP, for unauthenticated endpoints. Proxy
// headers are honored so all tenants behind one load balancer are not
// lumped into a single bucket.
func KeyByIP(r *http.Request) string {
	ip := clientip.GetIP(r)
	if ip == "" {
		return ""
	}
	return "ip:" + ip
}

// Composite joins several key functions into one key, hashing results that
// exceed the length bound.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) > maxKeyLength {
			hash := sha256.Sum256([]byte(combined))
			return hex.EncodeToString(hash[:16])
		}
		return combined
	}
}
