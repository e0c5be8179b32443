// Package insurance owns passenger policies: purchase under a premium cap,
// the one-shot late-airline multiplier, and payout debits. It is the only
// writer of a policy's payout credit.
//
// A Pool is not safe for concurrent use; callers serialise access.
package insurance

import (
	"bytes"
	"sort"
	"time"

	"flightsurety/internal/flight"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

// Multiplier applied to payout credit on an airline-caused delay (1.5×).
const (
	MultiplierNumerator   = 3
	MultiplierDenominator = 2
)

type Pool struct {
	maxPremium domain.Amount
	policies   map[domain.FlightKey]map[domain.Principal]*Policy
	multiplied map[domain.FlightKey]time.Time
	shortfalls map[domain.FlightKey]*Shortfall
}

func NewPool(maxPremium domain.Amount) *Pool {
	return &Pool{
		maxPremium: maxPremium,
		policies:   make(map[domain.FlightKey]map[domain.Principal]*Policy),
		multiplied: make(map[domain.FlightKey]time.Time),
		shortfalls: make(map[domain.FlightKey]*Shortfall),
	}
}

// MaxPremium is the cumulative premium cap per passenger per flight.
func (p *Pool) MaxPremium() domain.Amount { return p.maxPremium }

func (p *Pool) find(key domain.FlightKey, passenger domain.Principal) (*Policy, bool) {
	byPassenger, ok := p.policies[key]
	if !ok {
		return nil, false
	}
	pol, ok := byPassenger[passenger]
	return pol, ok
}

// IsInsured reports whether passenger holds a policy on the flight.
func (p *Pool) IsInsured(key domain.FlightKey, passenger domain.Principal) bool {
	_, ok := p.find(key, passenger)
	return ok
}

// Balance is the passenger's remaining payout credit on the flight.
func (p *Pool) Balance(key domain.FlightKey, passenger domain.Principal) domain.Amount {
	if pol, ok := p.find(key, passenger); ok {
		return pol.PayoutCredit
	}
	return 0
}

// Policy returns a copy of the passenger's policy.
func (p *Pool) Policy(key domain.FlightKey, passenger domain.Principal) (Policy, error) {
	pol, ok := p.find(key, passenger)
	if !ok {
		return Policy{}, dErrors.New(dErrors.CodeUnknownPolicy, "passenger holds no policy on this flight")
	}
	return *pol, nil
}

// Policies lists the flight's policies ordered by passenger.
func (p *Pool) Policies(key domain.FlightKey) []Policy {
	byPassenger := p.policies[key]
	out := make([]Policy, 0, len(byPassenger))
	for _, pol := range byPassenger {
		out = append(out, *pol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Passenger < out[j].Passenger })
	return out
}

// MultiplierApplied reports whether the flight's one-shot marker is set.
func (p *Pool) MultiplierApplied(key domain.FlightKey) bool {
	_, ok := p.multiplied[key]
	return ok
}

// CanBuy validates a purchase. Purchases that would take the cumulative
// premium past the cap are rejected outright.
func (p *Pool) CanBuy(f flight.Flight, passenger domain.Principal, amount domain.Amount) error {
	if !f.Registered {
		return dErrors.New(dErrors.CodeUnknownFlight, "flight is not registered")
	}
	if !f.Insurable {
		return dErrors.New(dErrors.CodeNotInsurable, "flight is not open for insurance")
	}
	if passenger.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "passenger principal is required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "premium must be greater than zero")
	}
	var paid domain.Amount
	if pol, ok := p.find(f.Key, passenger); ok {
		paid = pol.PremiumPaid
	}
	total, ok := paid.Add(amount)
	if !ok || total > p.maxPremium {
		return dErrors.New(dErrors.CodePremiumExceedsCap, "cumulative premium would exceed the cap")
	}
	return nil
}

// ApplyPurchase credits premium and an equal payout credit. Call CanBuy first.
func (p *Pool) ApplyPurchase(key domain.FlightKey, passenger domain.Principal, amount domain.Amount, now time.Time) Policy {
	byPassenger, ok := p.policies[key]
	if !ok {
		byPassenger = make(map[domain.Principal]*Policy)
		p.policies[key] = byPassenger
	}
	pol, ok := byPassenger[passenger]
	if !ok {
		pol = &Policy{Flight: key, Passenger: passenger, PurchasedAt: now}
		byPassenger[passenger] = pol
	}
	pol.PremiumPaid += amount
	pol.PayoutCredit += amount
	pol.UpdatedAt = now
	return *pol
}

// PlanMultiplier computes the late-airline multiplier for every policy on
// the flight that has not been scaled yet.
func (p *Pool) PlanMultiplier(key domain.FlightKey) (MultiplierPlan, error) {
	plan := MultiplierPlan{Flight: key}
	if p.MultiplierApplied(key) {
		plan.AlreadyApplied = true
		return plan, nil
	}
	for _, pol := range p.Policies(key) {
		if pol.Multiplied {
			continue
		}
		after, ok := pol.PayoutCredit.MulRat(MultiplierNumerator, MultiplierDenominator)
		if !ok {
			return MultiplierPlan{}, dErrors.New(dErrors.CodeInvariantViolation, "payout credit would overflow")
		}
		adj := Adjustment{Passenger: pol.Passenger, Before: pol.PayoutCredit, After: after}
		total, ok := plan.TotalBonus.Add(adj.Bonus())
		if !ok {
			return MultiplierPlan{}, dErrors.New(dErrors.CodeInvariantViolation, "multiplier bonus would overflow")
		}
		plan.TotalBonus = total
		plan.Adjustments = append(plan.Adjustments, adj)
	}
	return plan, nil
}

// ApplyMultiplier applies a plan from PlanMultiplier and sets the flight's
// one-shot marker. Applying a plan twice has no further effect.
func (p *Pool) ApplyMultiplier(plan MultiplierPlan, now time.Time) {
	if plan.AlreadyApplied || p.MultiplierApplied(plan.Flight) {
		return
	}
	for _, adj := range plan.Adjustments {
		pol, ok := p.find(plan.Flight, adj.Passenger)
		if !ok || pol.Multiplied {
			continue
		}
		pol.PayoutCredit = adj.After
		pol.Multiplied = true
		pol.UpdatedAt = now
	}
	p.multiplied[plan.Flight] = now
}

// RecordShortfall notes bonus the reserve could not fund when the multiplier
// was applied.
func (p *Pool) RecordShortfall(key domain.FlightKey, amount domain.Amount, now time.Time) {
	if amount == 0 {
		return
	}
	if sf, ok := p.shortfalls[key]; ok {
		sf.Amount += amount
		return
	}
	p.shortfalls[key] = &Shortfall{Flight: key, Amount: amount, RecordedAt: now}
}

// Shortfall is the bonus still owed to the flight's escrow.
func (p *Pool) Shortfall(key domain.FlightKey) domain.Amount {
	if sf, ok := p.shortfalls[key]; ok {
		return sf.Amount
	}
	return 0
}

// Shortfalls lists outstanding shortfalls, oldest first.
func (p *Pool) Shortfalls() []Shortfall {
	out := make([]Shortfall, 0, len(p.shortfalls))
	for _, sf := range p.shortfalls {
		out = append(out, *sf)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return bytes.Compare(out[i].Flight[:], out[j].Flight[:]) < 0
	})
	return out
}

// SettleShortfall records amount of the flight's shortfall as funded and
// returns what is still owed. Amounts past the shortfall are ignored.
func (p *Pool) SettleShortfall(key domain.FlightKey, amount domain.Amount) domain.Amount {
	sf, ok := p.shortfalls[key]
	if !ok {
		return 0
	}
	if amount >= sf.Amount {
		delete(p.shortfalls, key)
		return 0
	}
	sf.Amount -= amount
	return sf.Amount
}

// CanPayOut validates a payout debit. Credit is only paid out once an oracle
// status has settled the flight, so a late-airline multiplier is always
// applied first.
func (p *Pool) CanPayOut(f flight.Flight, passenger domain.Principal, amount domain.Amount) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "payout amount must be greater than zero")
	}
	pol, ok := p.find(f.Key, passenger)
	if !ok {
		return dErrors.New(dErrors.CodeUnknownPolicy, "passenger holds no policy on this flight")
	}
	if !f.HasStatus() {
		return dErrors.New(dErrors.CodeNotInsurable, "flight status has not been reported")
	}
	if amount > pol.PayoutCredit {
		return dErrors.New(dErrors.CodeInsufficientCredit, "payout exceeds remaining credit")
	}
	return nil
}

// ApplyPayOut debits the policy's credit. Call CanPayOut first.
func (p *Pool) ApplyPayOut(key domain.FlightKey, passenger domain.Principal, amount domain.Amount, now time.Time) Policy {
	pol, _ := p.find(key, passenger)
	pol.PayoutCredit -= amount
	pol.UpdatedAt = now
	return *pol
}
