package booking

type DeltaKind string

const (
	DeltaRefund            DeltaKind = "refund"
	DeltaAdditionalPayment DeltaKind = "additional_payment"
	DeltaNone              DeltaKind = "none"
)

// Delta is the signed difference between a booking's original and new total.
// Positive amounts are owed back to the customer; negative amounts are owed
// by the customer. It is informational and never charged automatically.
type Delta struct {
	AmountCents int64     `json:"amountCents"`
	Kind        DeltaKind `json:"kind"`
}

func NewDelta(originalCents, newCents int64) Delta {
	amount := originalCents - newCents
	switch {
	case amount > 0:
		return Delta{AmountCents: amount, Kind: DeltaRefund}
	case amount < 0:
		return Delta{AmountCents: amount, Kind: DeltaAdditionalPayment}
	default:
		return Delta{Kind: DeltaNone}
	}
}

// Magnitude is the unsigned amount to refund or collect.
func (d Delta) Magnitude() int64 {
	if d.AmountCents < 0 {
		return -d.AmountCents
	}
	return d.AmountCents
}
