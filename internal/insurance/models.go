package insurance

import (
	"time"

	"flightsurety/pkg/domain"
)

// Policy is one passenger's cover on one flight.
//
// Invariants:
//   - PremiumPaid never exceeds the pool's premium cap and never decreases
//   - PayoutCredit is scaled by the late-airline multiplier at most once
type Policy struct {
	Flight       domain.FlightKey `json:"flight"`
	Passenger    domain.Principal `json:"passenger"`
	PremiumPaid  domain.Amount    `json:"premium_paid"`
	PayoutCredit domain.Amount    `json:"payout_credit"`
	Multiplied   bool             `json:"multiplied"`
	PurchasedAt  time.Time        `json:"purchased_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Adjustment is one policy's share of a multiplier application.
type Adjustment struct {
	Passenger domain.Principal
	Before    domain.Amount
	After     domain.Amount
}

// Bonus is the value the multiplier adds to this policy.
func (a Adjustment) Bonus() domain.Amount {
	return a.After - a.Before
}

// MultiplierPlan is the precomputed effect of the late-airline multiplier on
// one flight. Plans are computed without mutation so the caller can check the
// reserve before applying.
type MultiplierPlan struct {
	Flight      domain.FlightKey
	Adjustments []Adjustment
	TotalBonus  domain.Amount
	// AlreadyApplied is true when the flight's one-shot marker is set.
	AlreadyApplied bool
}

// Shortfall is multiplier bonus already credited to a flight's policies that
// the reserve has not yet moved into the flight's escrow.
type Shortfall struct {
	Flight     domain.FlightKey
	Amount     domain.Amount
	RecordedAt time.Time
}
