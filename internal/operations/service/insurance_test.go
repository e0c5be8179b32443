package service

import (
	"context"
	"errors"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"flightsurety/internal/flight"
	"flightsurety/internal/insurance"
	"flightsurety/internal/journal"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

func (s *ServiceSuite) TestBuyInsurance() {
	s.bootstrap(s.service)
	_, err := s.service.RegisterFlight(s.ctx, owner, flight.Schedule{
		Code: flightCode, Origin: "JFK", Destination: "LHR", Departure: departure,
	})
	s.Require().NoError(err)

	s.Run("unknown flight", func() {
		_, err := s.service.BuyInsurance(s.ctx, passenger, owner, "NOPE1", departure, premium)
		s.requireCode(err, dErrors.CodeUnknownFlight)
	})

	s.Run("flight not yet insurable", func() {
		_, err := s.service.BuyInsurance(s.ctx, passenger, owner, flightCode, departure, premium)
		s.requireCode(err, dErrors.CodeNotInsurable)
		s.False(s.service.IsInsured(s.ctx, owner, passenger, flightCode, departure))
	})

	_, err = s.service.InsureFlight(s.ctx, owner, flightCode, departure)
	s.Require().NoError(err)
	key := s.service.GetFlightKey(owner, flightCode, departure)
	reserve := s.service.GetReserveBalance(s.ctx)

	s.Run("zero premium", func() {
		_, err := s.service.BuyInsurance(s.ctx, passenger, owner, flightCode, departure, 0)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("premium goes to the flight escrow", func() {
		policy, err := s.service.BuyInsurance(s.ctx, passenger, owner, flightCode, departure, premium)
		s.Require().NoError(err)

		want := insurance.Policy{Flight: key, Passenger: passenger, PremiumPaid: premium, PayoutCredit: premium}
		if diff := cmp.Diff(want, policy, cmpopts.IgnoreFields(insurance.Policy{}, "PurchasedAt", "UpdatedAt")); diff != "" {
			s.Failf("policy mismatch", "(-want +got):\n%s", diff)
		}
		s.True(s.service.IsInsured(s.ctx, owner, passenger, flightCode, departure))
		s.Equal(premium, s.service.GetInsuranceBalance(s.ctx, passenger, key))
		s.Equal(reserve+premium, s.service.GetContractBalance(s.ctx))
		s.Equal(reserve, s.service.GetReserveBalance(s.ctx))
	})

	s.Run("top-up is additive up to the cap", func() {
		policy, err := s.service.BuyInsurance(s.ctx, passenger, owner, flightCode, departure, DefaultMaxPremium-premium)
		s.Require().NoError(err)
		s.Equal(DefaultMaxPremium, policy.PremiumPaid)
		s.Len(s.service.GetPolicies(s.ctx, key), 1)
	})

	s.Run("past the cap is rejected whole", func() {
		balance := s.service.GetContractBalance(s.ctx)
		_, err := s.service.BuyInsurance(s.ctx, passenger, owner, flightCode, departure, 1)
		s.requireCode(err, dErrors.CodePremiumExceedsCap)
		s.Equal(balance, s.service.GetContractBalance(s.ctx))
		s.Equal(DefaultMaxPremium, s.service.GetInsuranceBalance(s.ctx, passenger, key))
	})

	s.Run("cap is per passenger", func() {
		_, err := s.service.BuyInsurance(s.ctx, stranger, owner, flightCode, departure, DefaultMaxPremium)
		s.Require().NoError(err)
		s.Len(s.service.GetPolicies(s.ctx, key), 2)
	})
}

func (s *ServiceSuite) TestPayOut() {
	s.bootstrap(s.service)
	key := s.insuredFlight(s.service)

	s.Run("never insured", func() {
		_, err := s.service.PayOut(s.ctx, stranger, key, 1)
		s.requireCode(err, dErrors.CodeUnknownPolicy)
	})

	s.Run("zero amount", func() {
		_, err := s.service.PayOut(s.ctx, passenger, key, 0)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("unsettled flight pays nothing", func() {
		_, err := s.service.PayOut(s.ctx, passenger, key, 1)
		s.requireCode(err, dErrors.CodeNotInsurable)
		s.Equal(premium, s.service.GetInsuranceBalance(s.ctx, passenger, key))
		s.Zero(s.service.GetPayableBalance(s.ctx, passenger))
		s.Empty(s.journal.ListByKind(journal.KindPayoutCredited))
	})

	s.Run("unknown flight", func() {
		_, err := s.service.PayOut(s.ctx, passenger, s.service.GetFlightKey(owner, "ZZ9", departure), 1)
		s.requireCode(err, dErrors.CodeUnknownFlight)
	})

	_, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
	s.Require().NoError(err)
	total := s.service.GetContractBalance(s.ctx)

	s.Run("more than the credit", func() {
		_, err := s.service.PayOut(s.ctx, passenger, key, 750_000_001)
		s.requireCode(err, dErrors.CodeInsufficientCredit)
	})

	s.Run("credit becomes payable in one step", func() {
		out, err := s.service.PayOut(s.ctx, passenger, key, 750_000_000)
		s.Require().NoError(err)
		s.Equal(domain.Amount(0), out.Policy.PayoutCredit)
		s.Equal(domain.Amount(750_000_000), out.Payable)
		s.Equal(domain.Amount(750_000_000), s.service.GetPayableBalance(s.ctx, passenger))
		s.Equal(domain.Amount(0), s.service.GetInsuranceBalance(s.ctx, passenger, key))
		s.Equal(total, s.service.GetContractBalance(s.ctx))
		s.NoError(s.service.Audit(s.ctx))
	})

	s.Run("exhausted credit is reported", func() {
		_, err := s.service.PayOut(s.ctx, passenger, key, 1)
		s.requireCode(err, dErrors.CodeInsufficientCredit)
		s.Equal(domain.Amount(750_000_000), s.service.GetPayableBalance(s.ctx, passenger))
	})
}

func (s *ServiceSuite) TestWithdraw() {
	s.bootstrap(s.service)
	key := s.insuredFlight(s.service)
	_, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusOnTime)
	s.Require().NoError(err)
	_, err = s.service.PayOut(s.ctx, passenger, key, premium)
	s.Require().NoError(err)
	total := s.service.GetContractBalance(s.ctx)

	s.Run("zero amount", func() {
		_, err := s.service.Withdraw(s.ctx, passenger, 0)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("more than payable", func() {
		_, err := s.service.Withdraw(s.ctx, passenger, premium+1)
		s.requireCode(err, dErrors.CodeInsufficientCredit)
	})

	s.Run("airline reserve is not withdrawable", func() {
		_, err := s.service.Withdraw(s.ctx, owner, 1)
		s.requireCode(err, dErrors.CodeInsufficientCredit)
	})

	s.Run("value leaves the ledger", func() {
		remaining, err := s.service.Withdraw(s.ctx, passenger, 200_000_000)
		s.Require().NoError(err)
		s.Equal(domain.Amount(300_000_000), remaining)
		s.Equal(total-200_000_000, s.service.GetContractBalance(s.ctx))
		s.NoError(s.service.Audit(s.ctx))
	})
}

func (s *ServiceSuite) TestWithdrawDisbursementFailureRestoresBalance() {
	var sent []domain.Amount
	failNext := true
	svc, _, _ := s.newService(Config{Owner: owner, Oracles: []domain.Principal{oracle}},
		WithDisburser(DisburserFunc(func(_ context.Context, to domain.Principal, amount domain.Amount) error {
			if failNext {
				failNext = false
				return errors.New("payment rail unavailable")
			}
			sent = append(sent, amount)
			return nil
		})),
	)
	s.bootstrap(svc)
	key := s.insuredFlight(svc)
	_, err := svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateWeather)
	s.Require().NoError(err)
	_, err = svc.PayOut(s.ctx, passenger, key, premium)
	s.Require().NoError(err)
	total := svc.GetContractBalance(s.ctx)

	_, err = svc.Withdraw(s.ctx, passenger, premium)
	s.requireCode(err, dErrors.CodeInternal)
	s.Equal(premium, svc.GetPayableBalance(s.ctx, passenger))
	s.Equal(total, svc.GetContractBalance(s.ctx))
	s.NoError(svc.Audit(s.ctx))

	remaining, err := svc.Withdraw(s.ctx, passenger, premium)
	s.Require().NoError(err)
	s.Zero(remaining)
	s.Equal([]domain.Amount{premium}, sent)
}

// TestFullJourney follows one passenger from bootstrap to withdrawal and
// checks value conservation at every step.
func (s *ServiceSuite) TestFullJourney() {
	svc := s.service
	s.bootstrap(svc)
	s.Equal(4*DefaultFundingThreshold, svc.GetContractBalance(s.ctx))

	_, err := svc.RegisterAirline(s.ctx, owner, airline5, "Airline 5")
	s.Require().NoError(err)
	for _, voter := range []domain.Principal{owner, airline2, airline3} {
		_, err := svc.CastVote(s.ctx, voter, airline5)
		s.Require().NoError(err)
	}
	_, err = svc.FundAirline(s.ctx, airline5, DefaultFundingThreshold)
	s.Require().NoError(err)
	s.Equal(5, svc.AirlineCount(s.ctx))

	key := s.insuredFlight(svc)
	_, err = svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
	s.Require().NoError(err)
	s.Equal(domain.Amount(750_000_000), svc.GetInsuranceBalance(s.ctx, passenger, key))

	_, err = svc.PayOut(s.ctx, passenger, key, 750_000_000)
	s.Require().NoError(err)
	_, err = svc.Withdraw(s.ctx, passenger, 750_000_000)
	s.Require().NoError(err)

	// Five fundings plus one premium, minus the withdrawal; the bonus came
	// out of the reserve.
	s.Equal(5*DefaultFundingThreshold+premium-750_000_000, svc.GetContractBalance(s.ctx))
	s.Equal(5*DefaultFundingThreshold-250_000_000, svc.GetReserveBalance(s.ctx))
	s.NoError(svc.Audit(s.ctx))
}
