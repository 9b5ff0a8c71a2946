package model

// Tier is the viewer's access level for one course. It is derived on every
// view and never stored.
type Tier string

const (
	TierNotAuthenticated Tier = "not_authenticated"
	TierNotEnrolled      Tier = "not_enrolled"
	TierPending          Tier = "pending"
	TierApproved         Tier = "approved"
	TierRejected         Tier = "rejected"
	TierAdmin            Tier = "admin"
)

func TierFromStatus(status PaymentStatus) Tier {
	switch status {
	case PaymentPending:
		return TierPending
	case PaymentApproved:
		return TierApproved
	case PaymentRejected:
		return TierRejected
	default:
		return TierNotEnrolled
	}
}
