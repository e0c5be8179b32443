package flight

import (
	"fmt"

	dErrors "flightsurety/pkg/domain-errors"
)

// StatusCode is the oracle-reported outcome of a flight. Values match the
// codes the oracle network reports on the wire.
type StatusCode uint8

const (
	StatusUnknown       StatusCode = 0
	StatusOnTime        StatusCode = 10
	StatusLateAirline   StatusCode = 20
	StatusLateWeather   StatusCode = 30
	StatusLateTechnical StatusCode = 40
	StatusLateOther     StatusCode = 50
)

var statusNames = map[StatusCode]string{
	StatusUnknown:       "UNKNOWN",
	StatusOnTime:        "ON_TIME",
	StatusLateAirline:   "LATE_AIRLINE",
	StatusLateWeather:   "LATE_WEATHER",
	StatusLateTechnical: "LATE_TECHNICAL",
	StatusLateOther:     "LATE_OTHER",
}

// ParseStatusCode validates a reported code.
func ParseStatusCode(v int) (StatusCode, error) {
	if v < 0 || v > 255 {
		return StatusUnknown, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown flight status code %d", v))
	}
	s := StatusCode(v)
	if !s.IsValid() {
		return StatusUnknown, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown flight status code %d", v))
	}
	return s, nil
}

func (s StatusCode) IsValid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether the status settles the flight.
func (s StatusCode) IsTerminal() bool {
	return s.IsValid() && s != StatusUnknown
}

func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", uint8(s))
}
