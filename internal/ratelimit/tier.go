package ratelimit

import (
	"github.com/pixedge/service/internal/apikey"
	"github.com/pixedge/service/internal/auth"
)

// Upload tier limits. All tiers share a one-minute window.
const (
	UserLimit      = 50
	AnonymousLimit = 20
	WindowSeconds  = 60
)

// Tier is the rate-limit policy selected for a principal.
type Tier struct {
	Key           string
	Limit         int
	WindowSeconds int
}

// UploadTierFor maps a principal to its upload rate-limit tier. Distinct
// principals of the same class never share a key; the same principal always
// maps to the same key.
func UploadTierFor(p auth.Principal) Tier {
	switch p.Kind {
	case auth.KindAPIKey:
		limit := p.RateLimit
		if limit <= 0 {
			limit = apikey.DefaultRateLimit
		}
		return Tier{Key: "upload:apikey:" + p.APIKeyID, Limit: limit, WindowSeconds: WindowSeconds}
	case auth.KindUser:
		return Tier{Key: "upload:user:" + p.UserID, Limit: UserLimit, WindowSeconds: WindowSeconds}
	default:
		return Tier{Key: "upload:" + p.IP, Limit: AnonymousLimit, WindowSeconds: WindowSeconds}
	}
}
