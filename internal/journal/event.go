// Package journal records every applied ledger operation as an append-only
// event stream. The in-memory state is authoritative; the journal is the
// durable trail the host keeps next to it, fanned out to whichever sinks are
// configured (badger, redis streams, postgres, kafka).
package journal

import (
	"time"

	"github.com/google/uuid"

	"flightsurety/pkg/domain"
)

// Kind names the operation an event records.
type Kind string

const (
	KindOperationalStatusChanged Kind = "operational_status_changed"
	KindAirlineRegistered        Kind = "airline_registered"
	KindAirlineProposed          Kind = "airline_proposed"
	KindAirlineFunded            Kind = "airline_funded"
	KindVoteCast                 Kind = "vote_cast"
	KindFlightRegistered         Kind = "flight_registered"
	KindFlightInsured            Kind = "flight_insured"
	KindFlightStatusReported     Kind = "flight_status_reported"
	KindMultiplierApplied        Kind = "multiplier_applied"
	KindBonusSettled             Kind = "bonus_settled"
	KindInsuranceBought          Kind = "insurance_bought"
	KindPayoutCredited           Kind = "payout_credited"
	KindWithdrawal               Kind = "withdrawal"
)

// Event is one applied operation. Sequence is assigned by the Publisher and
// is strictly increasing within a process.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Kind       Kind              `json:"kind"`
	Principal  domain.Principal  `json:"principal"`
	Subject    string            `json:"subject,omitempty"`
	Amount     domain.Amount     `json:"amount,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
