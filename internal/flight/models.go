package flight

import (
	"strings"
	"time"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

const (
	maxCodeLength    = 16
	maxAirportLength = 64
)

// Flight is a scheduled departure registered by a funded airline.
//
// Invariants:
//   - Insurable only moves false → true
//   - Status is set at most once; once terminal it never changes
type Flight struct {
	Key              domain.FlightKey `json:"key"`
	Airline          domain.Principal `json:"airline"`
	Code             string           `json:"code"`
	Origin           string           `json:"origin"`
	Destination      string           `json:"destination"`
	Departure        time.Time        `json:"departure"`
	Registered       bool             `json:"registered"`
	Insurable        bool             `json:"insurable"`
	Status           StatusCode       `json:"status"`
	RegisteredAt     time.Time        `json:"registered_at"`
	StatusReportedAt time.Time        `json:"status_reported_at,omitempty"`
}

// HasStatus reports whether an oracle status has already settled the flight.
func (f *Flight) HasStatus() bool {
	return f.Status.IsTerminal()
}

// Schedule is the caller-supplied part of a flight registration.
type Schedule struct {
	Code        string
	Origin      string
	Destination string
	Departure   time.Time
}

// Normalize trims whitespace and upper-cases codes.
func (s *Schedule) Normalize() {
	s.Code = strings.ToUpper(strings.TrimSpace(s.Code))
	s.Origin = strings.ToUpper(strings.TrimSpace(s.Origin))
	s.Destination = strings.ToUpper(strings.TrimSpace(s.Destination))
	s.Departure = s.Departure.UTC().Truncate(time.Second)
}

func (s *Schedule) Validate() error {
	if err := validateCode(s.Code); err != nil {
		return err
	}
	if s.Origin == "" || s.Destination == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "origin and destination are required")
	}
	if len(s.Origin) > maxAirportLength || len(s.Destination) > maxAirportLength {
		return dErrors.New(dErrors.CodeInvalidInput, "airport codes must be 64 characters or less")
	}
	if s.Departure.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "departure time is required")
	}
	return nil
}

// NormalizeCode applies the same normalisation as Schedule.Normalize so that
// keys derived from a bare code match registered flights.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeDeparture truncates to the second resolution used in keys.
func NormalizeDeparture(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func validateCode(code string) error {
	if code == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "flight code is required")
	}
	if len(code) > maxCodeLength {
		return dErrors.New(dErrors.CodeInvalidInput, "flight code must be 16 characters or less")
	}
	return nil
}
