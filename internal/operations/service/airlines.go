package service

import (
	"context"
	"errors"
	"strconv"

	"flightsurety/internal/airline"
	"flightsurety/internal/journal"
	"flightsurety/internal/ledger"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
	"flightsurety/pkg/requestcontext"
)

// RegisterAirline admits candidate directly while the membership is below the
// bootstrap size, and records a pending candidate afterwards. Proposing a
// candidate does not count as a vote for it.
func (s *Service) RegisterAirline(ctx context.Context, caller, candidate domain.Principal, name string) (reg airline.Registration, err error) {
	ctx, done := s.begin(ctx, "register_airline", caller)
	defer done(&err)

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if err := s.gate.RequireFunded(caller); err != nil {
			return err
		}
		var err error
		reg, err = s.airlines.Register(candidate, name, caller, now)
		return err
	})
	if err != nil {
		return airline.Registration{}, err
	}
	if !reg.Changed {
		return reg, nil
	}

	kind := journal.KindAirlineRegistered
	if reg.Pending {
		kind = journal.KindAirlineProposed
	}
	s.logger.InfoContext(ctx, string(kind),
		"principal", caller.String(),
		"candidate", candidate.String(),
		"pending", reg.Pending,
	)
	s.publish(ctx, newEvent(ctx, kind, caller, candidate.String(), 0))
	return reg, nil
}

// FundAirline moves amount into the reserve. The first funding must reach the
// threshold and makes caller a voting member; a funded airline may top up the
// reserve with any positive amount. New reserve first settles outstanding
// multiplier shortfalls. The reserve is not withdrawable by the airline.
func (s *Service) FundAirline(ctx context.Context, caller domain.Principal, amount domain.Amount) (details airline.Details, err error) {
	ctx, done := s.begin(ctx, "fund_airline", caller)
	defer done(&err)

	now := requestcontext.Now(ctx)
	var (
		topUp   bool
		settled []BonusSettlement
	)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		var err error
		topUp, err = s.airlines.CanFund(caller, amount, s.cfg.FundingThreshold)
		if err != nil {
			return err
		}
		if err := s.ledger.CanDeposit(ledger.Reserve(), amount); err != nil {
			return err
		}

		funded := s.airlines.ApplyFunding(caller, now)
		if err := s.ledger.Deposit(ledger.Reserve(), amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "reserve deposit failed after validation")
		}
		settled, err = s.settleShortfalls()
		if err != nil {
			return err
		}
		details = funded.Details()
		return nil
	})
	if err != nil {
		return airline.Details{}, err
	}

	msg := "airline funded"
	if topUp {
		msg = "airline reserve topped up"
	}
	s.logger.InfoContext(ctx, msg,
		"principal", caller.String(),
		"amount", amount.String(),
	)
	event := newEvent(ctx, journal.KindAirlineFunded, caller, "", amount)
	event.Attributes = map[string]string{"top_up": strconv.FormatBool(topUp)}
	s.publish(ctx, append([]journal.Event{event}, s.settlementEvents(ctx, caller, settled)...)...)
	return details, nil
}

// CastVote records caller's vote for a pending candidate. The vote that forms
// a strict majority of the funded airlines registers the candidate.
func (s *Service) CastVote(ctx context.Context, caller, candidate domain.Principal) (res airline.VoteResult, err error) {
	ctx, done := s.begin(ctx, "cast_vote", caller)
	defer done(&err)

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if err := s.gate.RequireFunded(caller); err != nil {
			return err
		}
		var err error
		res, err = s.airlines.Vote(candidate, caller, now)
		return err
	})
	if err != nil {
		return airline.VoteResult{}, err
	}

	vote := newEvent(ctx, journal.KindVoteCast, caller, candidate.String(), 0)
	vote.Attributes = map[string]string{
		"votes":    strconv.Itoa(res.Votes),
		"required": strconv.Itoa(res.Required),
	}
	events := []journal.Event{vote}
	if res.Registered {
		if s.metrics != nil {
			s.metrics.IncrementQuorumReached()
		}
		s.logger.InfoContext(ctx, "airline admitted by vote",
			"candidate", candidate.String(),
			"votes", res.Votes,
		)
		events = append(events, newEvent(ctx, journal.KindAirlineRegistered, caller, candidate.String(), 0))
	}
	s.publish(ctx, events...)
	return res, nil
}

// IsAirline reports whether id is a registered airline.
func (s *Service) IsAirline(_ context.Context, id domain.Principal) bool {
	var ok bool
	s.tx.view(func() {
		ok = s.airlines.IsAirline(id)
	})
	return ok
}

// AirlineCount is the number of registered airlines. Pending candidates are
// not counted.
func (s *Service) AirlineCount(_ context.Context) int {
	var n int
	s.tx.view(func() {
		n = s.airlines.Count()
	})
	return n
}

// GetAirlineDetails returns a member or pending candidate.
func (s *Service) GetAirlineDetails(_ context.Context, id domain.Principal) (airline.Details, error) {
	var (
		a   airline.Airline
		err error
	)
	s.tx.view(func() {
		a, err = s.airlines.Get(id)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return airline.Details{}, dErrors.New(dErrors.CodeUnknownAirline, "airline not found")
		}
		return airline.Details{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load airline")
	}
	return a.Details(), nil
}

// NumVotesCasted is the number of votes recorded for candidate.
func (s *Service) NumVotesCasted(_ context.Context, candidate domain.Principal) int {
	var n int
	s.tx.view(func() {
		n = s.airlines.Votes(candidate)
	})
	return n
}

// Candidates lists the airlines waiting for votes.
func (s *Service) Candidates(_ context.Context) []airline.Details {
	var out []airline.Details
	s.tx.view(func() {
		for _, a := range s.airlines.Candidates() {
			out = append(out, a.Details())
		}
	})
	return out
}
