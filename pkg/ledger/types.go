package ledger

import (
	"time"

	"github.com/pluginverse/storefront/pkg/auth"
)

// Account holds a user's coin balance and entitlement set
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Balance      int64     `json:"balance"`
	Role         auth.Role `json:"role"`
	Entitlements []string  `json:"entitlements"`
	CreatedAt    time.Time `json:"created_at"`
}

// Owns reports whether the account is entitled to the given plugin
func (a *Account) Owns(pluginID string) bool {
	for _, id := range a.Entitlements {
		if id == pluginID {
			return true
		}
	}
	return false
}
