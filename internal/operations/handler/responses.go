package handler

import (
	"flightsurety/internal/airline"
	"flightsurety/internal/flight"
	"flightsurety/internal/insurance"
	"flightsurety/pkg/domain"
)

type StatusResponse struct {
	Operational bool `json:"operational"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type RegistrationResponse struct {
	Airline airline.Details `json:"airline"`
	Pending bool            `json:"pending"`
}

type VotesResponse struct {
	Candidate domain.Principal `json:"candidate"`
	Votes     int              `json:"votes"`
}

type CandidatesResponse struct {
	Candidates []airline.Details `json:"candidates"`
}

type VoteResponse struct {
	Airline    airline.Details `json:"airline"`
	Votes      int             `json:"votes"`
	Required   int             `json:"required"`
	Registered bool            `json:"registered"`
}

type FlightKeyResponse struct {
	Key domain.FlightKey `json:"key"`
}

type FlightsResponse struct {
	Count   int             `json:"count"`
	Flights []flight.Flight `json:"flights,omitempty"`
}

type FlightResponse struct {
	flight.Flight
	StatusName string `json:"status_name"`
}

func toFlightResponse(f flight.Flight) FlightResponse {
	return FlightResponse{Flight: f, StatusName: f.Status.String()}
}

type StatusReportResponse struct {
	Flight    FlightResponse `json:"flight"`
	Applied   bool           `json:"applied"`
	Adjusted  int            `json:"adjusted"`
	Bonus     domain.Amount  `json:"bonus"`
	Shortfall domain.Amount  `json:"shortfall"`
}

type InsuredResponse struct {
	Insured bool `json:"insured"`
}

type PoliciesResponse struct {
	Policies []insurance.Policy `json:"policies"`
}

type BalanceResponse struct {
	Balance domain.Amount `json:"balance"`
}

type PayoutResponse struct {
	Policy  insurance.Policy `json:"policy"`
	Payable domain.Amount    `json:"payable"`
}

type WithdrawResponse struct {
	Withdrawn domain.Amount `json:"withdrawn"`
	Remaining domain.Amount `json:"remaining"`
}
