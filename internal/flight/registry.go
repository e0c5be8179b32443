// Package flight owns the flight table. It is the only writer of a flight's
// insurable flag and status.
//
// A Registry is not safe for concurrent use; callers serialise access.
package flight

import (
	"sort"
	"time"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
)

type Registry struct {
	flights map[domain.FlightKey]*Flight
}

func NewRegistry() *Registry {
	return &Registry{flights: make(map[domain.FlightKey]*Flight)}
}

// Count is the number of registered flights.
func (r *Registry) Count() int { return len(r.flights) }

// Get returns a copy of the flight stored under key.
func (r *Registry) Get(key domain.FlightKey) (Flight, error) {
	f, ok := r.flights[key]
	if !ok {
		return Flight{}, sentinel.ErrNotFound
	}
	return *f, nil
}

// Lookup resolves a flight by its natural key.
func (r *Registry) Lookup(airline domain.Principal, code string, departure time.Time) (Flight, error) {
	return r.Get(Key(airline, NormalizeCode(code), NormalizeDeparture(departure)))
}

// ListByAirline returns the airline's flights ordered by departure.
func (r *Registry) ListByAirline(airline domain.Principal) []Flight {
	out := make([]Flight, 0)
	for _, f := range r.flights {
		if f.Airline == airline {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Departure.Equal(out[j].Departure) {
			return out[i].Code < out[j].Code
		}
		return out[i].Departure.Before(out[j].Departure)
	})
	return out
}

// CanRegister validates a schedule for airline and returns the derived key.
// The caller's funding is checked by the access gate, not here.
func (r *Registry) CanRegister(airline domain.Principal, s *Schedule) (domain.FlightKey, error) {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return domain.FlightKey{}, err
	}
	key := Key(airline, s.Code, s.Departure)
	if _, exists := r.flights[key]; exists {
		return domain.FlightKey{}, dErrors.New(dErrors.CodeDuplicateFlight, "flight is already registered")
	}
	return key, nil
}

// ApplyRegistration stores a new flight. Call CanRegister first.
func (r *Registry) ApplyRegistration(key domain.FlightKey, airline domain.Principal, s Schedule, now time.Time) Flight {
	f := &Flight{
		Key:          key,
		Airline:      airline,
		Code:         s.Code,
		Origin:       s.Origin,
		Destination:  s.Destination,
		Departure:    s.Departure,
		Registered:   true,
		Insurable:    false,
		Status:       StatusUnknown,
		RegisteredAt: now,
	}
	r.flights[key] = f
	return *f
}

// Insure marks the flight insurable. Insuring twice has no further effect;
// the returned bool is true only when the flag changed.
func (r *Registry) Insure(key domain.FlightKey) (Flight, bool, error) {
	f, ok := r.flights[key]
	if !ok {
		return Flight{}, false, dErrors.New(dErrors.CodeUnknownFlight, "flight is not registered")
	}
	if f.Insurable {
		return *f, false, nil
	}
	f.Insurable = true
	return *f, true, nil
}

// CanReportStatus validates an oracle report. It returns false without error
// when the flight already carries a terminal status, so replays are no-ops.
func (r *Registry) CanReportStatus(key domain.FlightKey, status StatusCode) (bool, error) {
	f, ok := r.flights[key]
	if !ok {
		return false, dErrors.New(dErrors.CodeUnknownFlight, "flight is not registered")
	}
	if !status.IsTerminal() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "reported status must be a terminal status code")
	}
	if f.HasStatus() {
		return false, nil
	}
	return true, nil
}

// ApplyStatus records the status. Call CanReportStatus first.
func (r *Registry) ApplyStatus(key domain.FlightKey, status StatusCode, now time.Time) Flight {
	f := r.flights[key]
	f.Status = status
	f.StatusReportedAt = now
	return *f
}
