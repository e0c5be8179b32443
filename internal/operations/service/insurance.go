package service

import (
	"context"
	"errors"
	"time"

	"flightsurety/internal/insurance"
	"flightsurety/internal/journal"
	"flightsurety/internal/ledger"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
	"flightsurety/pkg/requestcontext"
)

// Payout is the outcome of PayOut.
type Payout struct {
	Policy  insurance.Policy
	Payable domain.Amount
}

// BuyInsurance buys or tops up payer's policy on an insurable flight. The
// premium goes into the flight's escrow. A purchase that would take the
// cumulative premium past the cap is rejected whole.
func (s *Service) BuyInsurance(ctx context.Context, payer, airlineID domain.Principal, code string, departure time.Time, amount domain.Amount) (policy insurance.Policy, err error) {
	ctx, done := s.begin(ctx, "buy_insurance", payer)
	defer done(&err)

	key := s.GetFlightKey(airlineID, code, departure)
	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		f, err := s.flights.Get(key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownFlight, "flight is not registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flight")
		}
		if err := s.pool.CanBuy(f, payer, amount); err != nil {
			return err
		}
		// Settled flights stop selling cover.
		if f.HasStatus() {
			return dErrors.New(dErrors.CodeNotInsurable, "flight status is already settled")
		}
		if err := s.ledger.CanDeposit(ledger.Escrow(key), amount); err != nil {
			return err
		}

		policy = s.pool.ApplyPurchase(key, payer, amount, now)
		if err := s.ledger.Deposit(ledger.Escrow(key), amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "escrow deposit failed after validation")
		}
		return nil
	})
	if err != nil {
		return insurance.Policy{}, err
	}

	s.logger.InfoContext(ctx, "insurance bought",
		"principal", payer.String(),
		"flight_key", key.String(),
		"amount", amount.String(),
		"premium_paid", policy.PremiumPaid.String(),
	)
	s.publish(ctx, newEvent(ctx, journal.KindInsuranceBought, payer, key.String(), amount))
	return policy, nil
}

// IsInsured reports whether passenger holds a policy on the flight.
func (s *Service) IsInsured(_ context.Context, airlineID, passenger domain.Principal, code string, departure time.Time) bool {
	key := s.GetFlightKey(airlineID, code, departure)
	var ok bool
	s.tx.view(func() {
		ok = s.pool.IsInsured(key, passenger)
	})
	return ok
}

// GetInsuranceBalance is passenger's remaining payout credit on the flight.
func (s *Service) GetInsuranceBalance(_ context.Context, passenger domain.Principal, key domain.FlightKey) domain.Amount {
	var credit domain.Amount
	s.tx.view(func() {
		credit = s.pool.Balance(key, passenger)
	})
	return credit
}

// GetPolicies lists the policies written on a flight.
func (s *Service) GetPolicies(_ context.Context, key domain.FlightKey) []insurance.Policy {
	var out []insurance.Policy
	s.tx.view(func() {
		out = s.pool.Policies(key)
	})
	return out
}

// PayOut moves amount of caller's credit on the flight into caller's
// withdrawable balance. The credit debit, the escrow debit and the payable
// credit happen in one step. Payouts wait for an oracle status on the flight;
// while a multiplier shortfall is outstanding the escrow may not cover every
// credit and the payout fails with InsufficientFunds until the reserve is
// topped up.
func (s *Service) PayOut(ctx context.Context, caller domain.Principal, key domain.FlightKey, amount domain.Amount) (out Payout, err error) {
	ctx, done := s.begin(ctx, "pay_out", caller)
	defer done(&err)

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		f, err := s.flights.Get(key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnknownFlight, "flight is not registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flight")
		}
		if err := s.pool.CanPayOut(f, caller, amount); err != nil {
			return err
		}
		if err := s.ledger.CanTransfer(ledger.Escrow(key), ledger.Payable(caller), amount); err != nil {
			if s.pool.Shortfall(key) > 0 {
				return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "flight escrow awaits multiplier bonus from the reserve")
			}
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "flight escrow does not cover policy credit")
		}

		out.Policy = s.pool.ApplyPayOut(key, caller, amount, now)
		if err := s.ledger.Transfer(ledger.Escrow(key), ledger.Payable(caller), amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "payout transfer failed after validation")
		}
		out.Payable = s.ledger.Balance(ledger.Payable(caller))
		return nil
	})
	if err != nil {
		return Payout{}, err
	}

	s.logger.InfoContext(ctx, "payout credited",
		"principal", caller.String(),
		"flight_key", key.String(),
		"amount", amount.String(),
		"remaining_credit", out.Policy.PayoutCredit.String(),
	)
	s.publish(ctx, newEvent(ctx, journal.KindPayoutCredited, caller, key.String(), amount))
	return out, nil
}
