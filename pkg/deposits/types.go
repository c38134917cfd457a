package deposits

import "time"

// Status of a deposit request. Pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Method is a recognized payment channel
type Method string

const (
	MethodEasypaisa Method = "easypaisa"
	MethodJazzcash  Method = "jazzcash"
	MethodUPI       Method = "upi"
)

// Methods lists every recognized payment method
var Methods = []Method{MethodEasypaisa, MethodJazzcash, MethodUPI}

// ValidMethod reports whether m is a recognized payment method
func ValidMethod(m Method) bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Deposit is one top-up claim. TxnRef is the user-supplied external
// transaction reference and is not independently verified.
type Deposit struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	Amount    int64      `json:"amount"`
	Method    Method     `json:"method"`
	TxnRef    string     `json:"txn_ref"`
	Status    Status     `json:"status"`
	DecidedBy *string    `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
