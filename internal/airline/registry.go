// Package airline owns the airline table and the admission rules: direct
// registration while the network is bootstrapping, majority voting by funded
// airlines afterwards.
//
// A Registry is not safe for concurrent use; callers serialise access.
package airline

import (
	"sort"
	"time"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
)

// DefaultBootstrapSize is the number of members admitted without a vote.
const DefaultBootstrapSize = 4

// Registry is the airline table plus the membership counters.
type Registry struct {
	airlines      map[domain.Principal]*Airline
	registered    int
	funded        int
	bootstrapSize int
}

type Option func(*Registry)

// WithBootstrapSize overrides DefaultBootstrapSize.
func WithBootstrapSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.bootstrapSize = n
		}
	}
}

// NewRegistry creates a registry whose first member is owner (registered,
// not yet funded).
func NewRegistry(owner domain.Principal, ownerName string, now time.Time, opts ...Option) (*Registry, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner principal is required")
	}
	name, err := normalizeName(ownerName)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		airlines:      make(map[domain.Principal]*Airline),
		bootstrapSize: DefaultBootstrapSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	first := newAirline(owner, name, owner, now)
	first.applyRegistration(now)
	r.airlines[owner] = first
	r.registered = 1
	return r, nil
}

// Registration describes the outcome of RegisterAirline.
type Registration struct {
	Airline Airline
	// Pending is true when the candidate now waits for votes.
	Pending bool
	// Changed is false for idempotent re-registration of a member.
	Changed bool
}

// VoteResult describes the outcome of a vote.
type VoteResult struct {
	Airline  Airline
	Votes    int
	Required int
	// Registered is true when this vote crossed the quorum.
	Registered bool
}

// IsAirline reports whether p is a registered airline.
func (r *Registry) IsAirline(p domain.Principal) bool {
	a, ok := r.airlines[p]
	return ok && a.Registered
}

// IsFunded reports whether p is a funded (voting) airline.
func (r *Registry) IsFunded(p domain.Principal) bool {
	a, ok := r.airlines[p]
	return ok && a.Funded
}

// Get returns a copy of the record for p, including pending candidates.
func (r *Registry) Get(p domain.Principal) (Airline, error) {
	a, ok := r.airlines[p]
	if !ok {
		return Airline{}, sentinel.ErrNotFound
	}
	return a.snapshot(), nil
}

// Count is the number of registered airlines.
func (r *Registry) Count() int { return r.registered }

// FundedCount is the number of voting members.
func (r *Registry) FundedCount() int { return r.funded }

// BootstrapSize is the number of members admitted without votes.
func (r *Registry) BootstrapSize() int { return r.bootstrapSize }

// Votes returns the number of votes recorded for candidate.
func (r *Registry) Votes(candidate domain.Principal) int {
	if a, ok := r.airlines[candidate]; ok {
		return a.VoteCount()
	}
	return 0
}

// RequiredVotes is the strict-majority quorum of the current funded set.
func (r *Registry) RequiredVotes() int {
	return r.funded/2 + 1
}

// Candidates lists pending airlines ordered by proposal time.
func (r *Registry) Candidates() []Airline {
	out := make([]Airline, 0)
	for _, a := range r.airlines {
		if a.IsPending() {
			out = append(out, a.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProposedAt.Equal(out[j].ProposedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ProposedAt.Before(out[j].ProposedAt)
	})
	return out
}

func (r *Registry) requireVoter(caller domain.Principal) error {
	if !r.IsFunded(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a funded airline")
	}
	return nil
}

// Register admits candidate directly during bootstrap, or records it as a
// pending candidate afterwards. Re-registering a member is a no-op.
func (r *Registry) Register(candidate domain.Principal, name string, caller domain.Principal, now time.Time) (Registration, error) {
	if err := r.requireVoter(caller); err != nil {
		return Registration{}, err
	}
	if candidate.IsNil() {
		return Registration{}, dErrors.New(dErrors.CodeInvalidInput, "candidate principal is required")
	}
	name, err := normalizeName(name)
	if err != nil {
		return Registration{}, err
	}

	existing, ok := r.airlines[candidate]
	if ok && existing.Registered {
		return Registration{Airline: existing.snapshot()}, nil
	}

	if r.registered < r.bootstrapSize {
		a := existing
		if a == nil {
			a = newAirline(candidate, name, caller, now)
			r.airlines[candidate] = a
		}
		a.Name = name
		a.applyRegistration(now)
		r.registered++
		return Registration{Airline: a.snapshot(), Changed: true}, nil
	}

	if existing == nil {
		existing = newAirline(candidate, name, caller, now)
		r.airlines[candidate] = existing
	} else {
		existing.Name = name
	}
	return Registration{Airline: existing.snapshot(), Pending: true, Changed: true}, nil
}

// Vote records caller's vote for candidate and registers the candidate when
// the votes form a strict majority of the funded airlines.
func (r *Registry) Vote(candidate, caller domain.Principal, now time.Time) (VoteResult, error) {
	if err := r.requireVoter(caller); err != nil {
		return VoteResult{}, err
	}
	a, ok := r.airlines[candidate]
	if !ok {
		return VoteResult{}, dErrors.New(dErrors.CodeUnknownCandidate, "candidate was never proposed")
	}
	if a.Registered {
		return VoteResult{}, dErrors.New(dErrors.CodeAlreadyRegistered, "candidate is already a member")
	}
	if a.HasVoted(caller) {
		return VoteResult{}, dErrors.New(dErrors.CodeDuplicateVote, "airline already voted for candidate")
	}

	a.votes[caller] = now
	required := r.RequiredVotes()
	crossed := 2*a.VoteCount() > r.funded
	if crossed {
		a.applyRegistration(now)
		r.registered++
	}
	return VoteResult{
		Airline:    a.snapshot(),
		Votes:      a.VoteCount(),
		Required:   required,
		Registered: crossed,
	}, nil
}

// CanFund validates a funding call for caller against threshold. The first
// funding must reach the threshold; a funded airline tops up the reserve
// with any positive amount. topUp reports which case applies.
func (r *Registry) CanFund(caller domain.Principal, amount, threshold domain.Amount) (topUp bool, err error) {
	a, ok := r.airlines[caller]
	if !ok {
		return false, dErrors.New(dErrors.CodeUnknownAirline, "caller is not a registered airline")
	}
	if err := a.CanFund(); err != nil {
		return false, err
	}
	if a.Funded {
		if amount == 0 {
			return true, dErrors.New(dErrors.CodeInvalidInput, "top-up must be greater than zero")
		}
		return true, nil
	}
	if amount < threshold {
		return false, dErrors.New(dErrors.CodeInsufficientFunds, "funding is below the required threshold")
	}
	return false, nil
}

// ApplyFunding marks caller as funded. A top-up leaves the membership
// unchanged. Call CanFund first.
func (r *Registry) ApplyFunding(caller domain.Principal, now time.Time) Airline {
	a := r.airlines[caller]
	if !a.Funded {
		r.funded++
	}
	a.ApplyFunding(now)
	return a.snapshot()
}
