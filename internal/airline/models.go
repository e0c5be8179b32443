package airline

import (
	"sort"
	"strings"
	"time"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

const maxNameLength = 128

// Airline is a member, or a candidate for membership, of the governing set.
//
// Invariants:
//   - Funded implies Registered
//   - Votes only grows while the airline is pending, and holds each voter once
//   - records are never deleted
type Airline struct {
	ID           domain.Principal
	Name         string
	Registered   bool
	Funded       bool
	ProposedBy   domain.Principal
	ProposedAt   time.Time
	RegisteredAt time.Time
	FundedAt     time.Time

	votes map[domain.Principal]time.Time
}

func newAirline(id domain.Principal, name string, proposer domain.Principal, now time.Time) *Airline {
	return &Airline{
		ID:         id,
		Name:       name,
		ProposedBy: proposer,
		ProposedAt: now,
		votes:      make(map[domain.Principal]time.Time),
	}
}

// IsPending reports whether the airline is waiting for votes.
func (a *Airline) IsPending() bool {
	return !a.Registered
}

// VoteCount is the number of distinct voters for the airline.
func (a *Airline) VoteCount() int {
	return len(a.votes)
}

// HasVoted reports whether voter already voted for the airline.
func (a *Airline) HasVoted(voter domain.Principal) bool {
	_, ok := a.votes[voter]
	return ok
}

// Voters lists voters in a stable order.
func (a *Airline) Voters() []domain.Principal {
	out := make([]domain.Principal, 0, len(a.votes))
	for v := range a.votes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanFund checks the funding preconditions other than the amount. A funded
// airline may fund again; the deposit tops up the reserve.
func (a *Airline) CanFund() error {
	if !a.Registered {
		return dErrors.New(dErrors.CodeUnknownAirline, "airline is not registered")
	}
	return nil
}

// ApplyFunding marks the airline as a voting member. FundedAt keeps the
// first funding.
func (a *Airline) ApplyFunding(now time.Time) {
	if a.Funded {
		return
	}
	a.Funded = true
	a.FundedAt = now
}

func (a *Airline) applyRegistration(now time.Time) {
	a.Registered = true
	a.RegisteredAt = now
}

func (a *Airline) snapshot() Airline {
	out := *a
	out.votes = make(map[domain.Principal]time.Time, len(a.votes))
	for k, v := range a.votes {
		out.votes[k] = v
	}
	return out
}

// Details is the read model returned to callers.
type Details struct {
	ID         domain.Principal `json:"id"`
	Name       string           `json:"name"`
	Registered bool             `json:"registered"`
	Funded     bool             `json:"funded"`
	Votes      int              `json:"votes"`
}

func (a *Airline) Details() Details {
	return Details{
		ID:         a.ID,
		Name:       a.Name,
		Registered: a.Registered,
		Funded:     a.Funded,
		Votes:      a.VoteCount(),
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "airline name is required")
	}
	if len(name) > maxNameLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "airline name must be 128 characters or less")
	}
	return name, nil
}
