// Package gate is the access gate consulted first by every mutating
// operation: the operational kill-switch, the administrator, oracle feeders,
// and the airline membership predicates.
package gate

import (
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

// Membership answers airline predicates; the airline registry implements it.
type Membership interface {
	IsAirline(p domain.Principal) bool
	IsFunded(p domain.Principal) bool
}

type Gate struct {
	admin       domain.Principal
	operational bool
	oracles     map[domain.Principal]struct{}
	members     Membership
}

// New returns an operational gate administered by admin. The administrator is
// always an oracle feeder; oracles adds further feeders.
func New(admin domain.Principal, members Membership, oracles ...domain.Principal) *Gate {
	g := &Gate{
		admin:       admin,
		operational: true,
		oracles:     make(map[domain.Principal]struct{}, len(oracles)+1),
		members:     members,
	}
	g.oracles[admin] = struct{}{}
	for _, o := range oracles {
		if !o.IsNil() {
			g.oracles[o] = struct{}{}
		}
	}
	return g
}

func (g *Gate) Admin() domain.Principal { return g.admin }

func (g *Gate) IsOperational() bool { return g.operational }

// SetOperational flips the kill-switch. Only the administrator may call it,
// and it stays available while the service is suspended.
func (g *Gate) SetOperational(caller domain.Principal, operational bool) (bool, error) {
	if caller != g.admin {
		return false, dErrors.New(dErrors.CodeUnauthorized, "only the administrator may change operational status")
	}
	changed := g.operational != operational
	g.operational = operational
	return changed, nil
}

// RequireOperational fails with ServiceSuspended while the kill-switch is off.
func (g *Gate) RequireOperational() error {
	if !g.operational {
		return dErrors.New(dErrors.CodeServiceSuspended, "service is suspended")
	}
	return nil
}

// RequireFunded fails unless caller is a funded airline.
func (g *Gate) RequireFunded(caller domain.Principal) error {
	if !g.members.IsFunded(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not a funded airline")
	}
	return nil
}

func (g *Gate) IsOracle(p domain.Principal) bool {
	_, ok := g.oracles[p]
	return ok
}

// RequireOracle fails unless caller may report flight status.
func (g *Gate) RequireOracle(caller domain.Principal) error {
	if !g.IsOracle(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller may not report flight status")
	}
	return nil
}
