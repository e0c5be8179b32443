// Package handler exposes the flight surety operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flightsurety/internal/airline"
	"flightsurety/internal/flight"
	"flightsurety/internal/insurance"
	"flightsurety/internal/operations/service"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/httputil"
	authmw "flightsurety/pkg/platform/middleware/auth"
	"flightsurety/pkg/requestcontext"
)

// Service is the operations facade the handler drives.
type Service interface {
	IsOperational(ctx context.Context) bool
	SetOperationalStatus(ctx context.Context, caller domain.Principal, operational bool) error

	RegisterAirline(ctx context.Context, caller, candidate domain.Principal, name string) (airline.Registration, error)
	FundAirline(ctx context.Context, caller domain.Principal, amount domain.Amount) (airline.Details, error)
	CastVote(ctx context.Context, caller, candidate domain.Principal) (airline.VoteResult, error)
	AirlineCount(ctx context.Context) int
	GetAirlineDetails(ctx context.Context, id domain.Principal) (airline.Details, error)
	NumVotesCasted(ctx context.Context, candidate domain.Principal) int
	Candidates(ctx context.Context) []airline.Details

	GetFlightKey(airline domain.Principal, code string, departure time.Time) domain.FlightKey
	RegisterFlight(ctx context.Context, caller domain.Principal, schedule flight.Schedule) (flight.Flight, error)
	InsureFlight(ctx context.Context, caller domain.Principal, code string, departure time.Time) (flight.Flight, error)
	ProcessFlightStatus(ctx context.Context, caller, airlineID domain.Principal, code string, departure time.Time, status flight.StatusCode) (service.StatusReport, error)
	GetFlightDetails(ctx context.Context, key domain.FlightKey) (flight.Flight, error)
	GetFlightCount(ctx context.Context) int
	ListFlights(ctx context.Context, airlineID domain.Principal) []flight.Flight

	BuyInsurance(ctx context.Context, payer, airlineID domain.Principal, code string, departure time.Time, amount domain.Amount) (insurance.Policy, error)
	IsInsured(ctx context.Context, airlineID, passenger domain.Principal, code string, departure time.Time) bool
	GetInsuranceBalance(ctx context.Context, passenger domain.Principal, key domain.FlightKey) domain.Amount
	GetPolicies(ctx context.Context, key domain.FlightKey) []insurance.Policy
	PayOut(ctx context.Context, caller domain.Principal, key domain.FlightKey, amount domain.Amount) (service.Payout, error)

	Withdraw(ctx context.Context, caller domain.Principal, amount domain.Amount) (domain.Amount, error)
	GetContractBalance(ctx context.Context) domain.Amount
	GetPayableBalance(ctx context.Context, p domain.Principal) domain.Amount
	GetReserveBalance(ctx context.Context) domain.Amount
}

// Handler wires the operations endpoints to the service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	validator   authmw.JWTValidator
	revocations authmw.TokenRevocationChecker
}

// New constructs an operations handler. Mutating routes authenticate with
// validator and revocations.
func New(service Service, logger *slog.Logger, validator authmw.JWTValidator, revocations authmw.TokenRevocationChecker) *Handler {
	return &Handler{
		service:     service,
		logger:      logger,
		validator:   validator,
		revocations: revocations,
	}
}

// Register mounts the /v1 routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/airlines", h.HandleAirlineCount)
		r.Get("/airlines/candidates", h.HandleCandidates)
		r.Get("/airlines/{id}", h.HandleGetAirline)
		r.Get("/airlines/{id}/votes", h.HandleGetVotes)
		r.Get("/flights", h.HandleListFlights)
		r.Get("/flights/key", h.HandleFlightKey)
		r.Get("/flights/{key}", h.HandleGetFlight)
		r.Get("/flights/{key}/policies", h.HandlePolicies)
		r.Get("/insurance", h.HandleIsInsured)
		r.Get("/insurance/{key}/balance", h.HandleInsuranceBalance)
		r.Get("/balance", h.HandleContractBalance)
		r.Get("/balance/reserve", h.HandleReserveBalance)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.validator, h.revocations, h.logger))

			r.Put("/admin/operational", h.HandleSetOperational)
			r.Post("/airlines", h.HandleRegisterAirline)
			r.Post("/airlines/fund", h.HandleFundAirline)
			r.Post("/airlines/{id}/votes", h.HandleCastVote)
			r.Post("/flights", h.HandleRegisterFlight)
			r.Post("/flights/insure", h.HandleInsureFlight)
			r.Post("/oracle/status", h.HandleFlightStatus)
			r.Post("/insurance", h.HandleBuyInsurance)
			r.Post("/payouts", h.HandlePayOut)
			r.Post("/withdrawals", h.HandleWithdraw)
			r.Get("/balance/me", h.HandlePayableBalance)
		})
	})
}

// HandleStatus handles GET /v1/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Operational: h.service.IsOperational(r.Context())})
}

// HandleSetOperational handles PUT /v1/admin/operational.
func (h *Handler) HandleSetOperational(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req SetOperationalRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.SetOperationalStatus(r.Context(), caller, *req.Operational); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Operational: *req.Operational})
}

// HandleAirlineCount handles GET /v1/airlines.
func (h *Handler) HandleAirlineCount(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, CountResponse{Count: h.service.AirlineCount(r.Context())})
}

// HandleRegisterAirline handles POST /v1/airlines. A candidate past the
// bootstrap phase is answered with 202 while it waits for votes.
func (h *Handler) HandleRegisterAirline(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req RegisterAirlineRequest
	if !h.decode(w, r, &req) {
		return
	}
	candidate, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reg, err := h.service.RegisterAirline(r.Context(), caller, candidate, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	switch {
	case reg.Pending:
		status = http.StatusAccepted
	case !reg.Changed:
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, RegistrationResponse{Airline: reg.Airline.Details(), Pending: reg.Pending})
}

// HandleFundAirline handles POST /v1/airlines/fund.
func (h *Handler) HandleFundAirline(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	details, err := h.service.FundAirline(r.Context(), caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleGetAirline handles GET /v1/airlines/{id}.
func (h *Handler) HandleGetAirline(w http.ResponseWriter, r *http.Request) {
	id, err := parsePrincipal("id", chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	details, err := h.service.GetAirlineDetails(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

// HandleGetVotes handles GET /v1/airlines/{id}/votes.
func (h *Handler) HandleGetVotes(w http.ResponseWriter, r *http.Request) {
	id, err := parsePrincipal("id", chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VotesResponse{Candidate: id, Votes: h.service.NumVotesCasted(r.Context(), id)})
}

// HandleCandidates handles GET /v1/airlines/candidates.
func (h *Handler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, CandidatesResponse{Candidates: h.service.Candidates(r.Context())})
}

// HandleCastVote handles POST /v1/airlines/{id}/votes.
func (h *Handler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	candidate, err := parsePrincipal("id", chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.CastVote(r.Context(), caller, candidate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VoteResponse{
		Airline:    res.Airline.Details(),
		Votes:      res.Votes,
		Required:   res.Required,
		Registered: res.Registered,
	})
}

// HandleListFlights handles GET /v1/flights. With ?airline= the airline's
// flights are listed as well.
func (h *Handler) HandleListFlights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := FlightsResponse{Count: h.service.GetFlightCount(ctx)}
	if raw := r.URL.Query().Get("airline"); raw != "" {
		airlineID, err := parsePrincipal("airline", raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp.Flights = h.service.ListFlights(ctx, airlineID)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRegisterFlight handles POST /v1/flights.
func (h *Handler) HandleRegisterFlight(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req RegisterFlightRequest
	if !h.decode(w, r, &req) {
		return
	}
	f, err := h.service.RegisterFlight(r.Context(), caller, req.Schedule())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toFlightResponse(f))
}

// HandleFlightKey handles GET /v1/flights/key.
func (h *Handler) HandleFlightKey(w http.ResponseWriter, r *http.Request) {
	q, err := parseFlightQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FlightKeyResponse{Key: h.service.GetFlightKey(q.Airline, q.Code, q.Departure)})
}

// HandleGetFlight handles GET /v1/flights/{key}.
func (h *Handler) HandleGetFlight(w http.ResponseWriter, r *http.Request) {
	key, ok := flightKeyParam(w, r)
	if !ok {
		return
	}
	f, err := h.service.GetFlightDetails(r.Context(), key)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFlightResponse(f))
}

// HandlePolicies handles GET /v1/flights/{key}/policies.
func (h *Handler) HandlePolicies(w http.ResponseWriter, r *http.Request) {
	key, ok := flightKeyParam(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PoliciesResponse{Policies: h.service.GetPolicies(r.Context(), key)})
}

// HandleInsureFlight handles POST /v1/flights/insure.
func (h *Handler) HandleInsureFlight(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req InsureFlightRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := h.service.InsureFlight(r.Context(), caller, req.Code, req.Departure)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFlightResponse(f))
}

// HandleFlightStatus handles POST /v1/oracle/status.
func (h *Handler) HandleFlightStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req FlightStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	airlineID, status, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.ProcessFlightStatus(ctx, caller, airlineID, req.Code, req.Departure, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusReportResponse{
		Flight:    toFlightResponse(report.Flight),
		Applied:   report.Applied,
		Adjusted:  report.Adjusted,
		Bonus:     report.Bonus,
		Shortfall: report.Shortfall,
	})
}

// HandleBuyInsurance handles POST /v1/insurance.
func (h *Handler) HandleBuyInsurance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req BuyInsuranceRequest
	if !h.decode(w, r, &req) {
		return
	}
	airlineID, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	policy, err := h.service.BuyInsurance(r.Context(), caller, airlineID, req.Code, req.Departure, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// HandleIsInsured handles GET /v1/insurance?airline=&code=&departure=&passenger=.
func (h *Handler) HandleIsInsured(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q, err := parseFlightQuery(query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	passenger, err := parsePrincipal("passenger", query.Get("passenger"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	insured := h.service.IsInsured(r.Context(), q.Airline, passenger, q.Code, q.Departure)
	httputil.WriteJSON(w, http.StatusOK, InsuredResponse{Insured: insured})
}

// HandleInsuranceBalance handles GET /v1/insurance/{key}/balance?passenger=.
func (h *Handler) HandleInsuranceBalance(w http.ResponseWriter, r *http.Request) {
	key, ok := flightKeyParam(w, r)
	if !ok {
		return
	}
	passenger, err := parsePrincipal("passenger", r.URL.Query().Get("passenger"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: h.service.GetInsuranceBalance(r.Context(), passenger, key)})
}

// HandlePayOut handles POST /v1/payouts.
func (h *Handler) HandlePayOut(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req PayOutRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.PayOut(r.Context(), caller, req.Flight, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PayoutResponse{Policy: out.Policy, Payable: out.Payable})
}

// HandleWithdraw handles POST /v1/withdrawals.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	remaining, err := h.service.Withdraw(r.Context(), caller, req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WithdrawResponse{Withdrawn: req.Amount, Remaining: remaining})
}

// HandleContractBalance handles GET /v1/balance.
func (h *Handler) HandleContractBalance(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: h.service.GetContractBalance(r.Context())})
}

// HandleReserveBalance handles GET /v1/balance/reserve.
func (h *Handler) HandleReserveBalance(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: h.service.GetReserveBalance(r.Context())})
}

// HandlePayableBalance handles GET /v1/balance/me.
func (h *Handler) HandlePayableBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: h.service.GetPayableBalance(r.Context(), caller)})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p := requestcontext.Principal(r.Context())
	if p.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return p, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request",
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

func flightKeyParam(w http.ResponseWriter, r *http.Request) (domain.FlightKey, bool) {
	key, err := domain.ParseFlightKey(chi.URLParam(r, "key"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "key is not a valid flight key"))
		return domain.FlightKey{}, false
	}
	return key, true
}
