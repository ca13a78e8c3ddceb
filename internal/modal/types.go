package modal

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// FromFlowCode maps a gateway status code; unknown codes stay pending.
func FromFlowCode(code int) PaymentStatus {
	switch code {
	case 2:
		return PaymentPaid
	case 3:
		return PaymentRejected
	case 4:
		return PaymentCancelled
	default:
		return PaymentPending
	}
}

// Terminal reports whether no further gateway update is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentRejected || s == PaymentCancelled
}

// CanMoveTo encodes the ledger rule: paid is final, everything else may be
// overwritten by a newer verified status.
func (s PaymentStatus) CanMoveTo(next PaymentStatus) bool {
	if s == PaymentPaid {
		return next == PaymentPaid
	}
	return true
}

type PaymentMethod string

const (
	MethodFlow PaymentMethod = "flow"
	MethodBank PaymentMethod = "bacs"
)
