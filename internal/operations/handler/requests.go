package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"flightsurety/internal/flight"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

type SetOperationalRequest struct {
	Operational *bool `json:"operational"`
}

func (r *SetOperationalRequest) Validate() error {
	if r.Operational == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "operational is required")
	}
	return nil
}

type RegisterAirlineRequest struct {
	Airline string `json:"airline"`
	Name    string `json:"name"`
}

func (r *RegisterAirlineRequest) Parse() (domain.Principal, error) {
	return parsePrincipal("airline", r.Airline)
}

type AmountRequest struct {
	Amount domain.Amount `json:"amount"`
}

type RegisterFlightRequest struct {
	Code        string    `json:"code"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
}

func (r *RegisterFlightRequest) Schedule() flight.Schedule {
	return flight.Schedule{
		Code:        r.Code,
		Origin:      r.Origin,
		Destination: r.Destination,
		Departure:   r.Departure,
	}
}

type InsureFlightRequest struct {
	Code      string    `json:"code"`
	Departure time.Time `json:"departure"`
}

func (r *InsureFlightRequest) Validate() error {
	return validateFlightRef(r.Code, r.Departure)
}

type FlightStatusRequest struct {
	Airline   string    `json:"airline"`
	Code      string    `json:"code"`
	Departure time.Time `json:"departure"`
	Status    int       `json:"status"`
}

func (r *FlightStatusRequest) Parse() (domain.Principal, flight.StatusCode, error) {
	airline, err := parsePrincipal("airline", r.Airline)
	if err != nil {
		return "", 0, err
	}
	if err := validateFlightRef(r.Code, r.Departure); err != nil {
		return "", 0, err
	}
	status, err := flight.ParseStatusCode(r.Status)
	if err != nil {
		return "", 0, err
	}
	return airline, status, nil
}

type BuyInsuranceRequest struct {
	Airline   string        `json:"airline"`
	Code      string        `json:"code"`
	Departure time.Time     `json:"departure"`
	Amount    domain.Amount `json:"amount"`
}

func (r *BuyInsuranceRequest) Parse() (domain.Principal, error) {
	airline, err := parsePrincipal("airline", r.Airline)
	if err != nil {
		return "", err
	}
	if err := validateFlightRef(r.Code, r.Departure); err != nil {
		return "", err
	}
	return airline, nil
}

type PayOutRequest struct {
	Flight domain.FlightKey `json:"flight"`
	Amount domain.Amount    `json:"amount"`
}

func (r *PayOutRequest) Validate() error {
	if r.Flight.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "flight is required")
	}
	return nil
}

// flightQuery is the (airline, code, departure) triple read from a query string.
type flightQuery struct {
	Airline   domain.Principal
	Code      string
	Departure time.Time
}

func parseFlightQuery(q url.Values) (flightQuery, error) {
	airline, err := parsePrincipal("airline", q.Get("airline"))
	if err != nil {
		return flightQuery{}, err
	}
	departure, err := parseDeparture(q.Get("departure"))
	if err != nil {
		return flightQuery{}, err
	}
	code := strings.TrimSpace(q.Get("code"))
	if err := validateFlightRef(code, departure); err != nil {
		return flightQuery{}, err
	}
	return flightQuery{Airline: airline, Code: code, Departure: departure}, nil
}

// parseDeparture accepts RFC 3339 or unix seconds.
func parseDeparture(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "departure is required")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "departure must be RFC 3339 or unix seconds")
	}
	return t, nil
}

func parsePrincipal(field, s string) (domain.Principal, error) {
	p, err := domain.ParsePrincipal(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" is not a valid principal")
	}
	return p, nil
}

func validateFlightRef(code string, departure time.Time) error {
	if strings.TrimSpace(code) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "code is required")
	}
	if departure.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "departure is required")
	}
	return nil
}
