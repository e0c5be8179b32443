package service

import (
	"fmt"
	"time"

	"flightsurety/internal/flight"
	"flightsurety/internal/journal"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/requestcontext"
)

func (s *ServiceSuite) TestRegisterFlight() {
	schedule := flight.Schedule{Code: "abc123", Origin: "jfk", Destination: "lhr", Departure: departure}

	s.Run("unfunded airline cannot register", func() {
		_, err := s.service.RegisterFlight(s.ctx, owner, schedule)
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Equal(0, s.service.GetFlightCount(s.ctx))
	})

	s.bootstrap(s.service)

	s.Run("creates a registered, non-insurable flight", func() {
		f, err := s.service.RegisterFlight(s.ctx, owner, schedule)
		s.Require().NoError(err)
		s.Equal(s.service.GetFlightKey(owner, flightCode, departure), f.Key)
		s.Equal("ABC123", f.Code)
		s.Equal("JFK", f.Origin)
		s.True(f.Registered)
		s.False(f.Insurable)
		s.Equal(flight.StatusUnknown, f.Status)
		s.Equal(1, s.service.GetFlightCount(s.ctx))

		details, err := s.service.GetFlightDetails(s.ctx, f.Key)
		s.Require().NoError(err)
		s.Equal(owner, details.Airline)
		s.True(details.Departure.Equal(departure))
	})

	s.Run("duplicate flight", func() {
		_, err := s.service.RegisterFlight(s.ctx, owner, schedule)
		s.requireCode(err, dErrors.CodeDuplicateFlight)
		s.Equal(1, s.service.GetFlightCount(s.ctx))
	})

	s.Run("same code for another airline is a different flight", func() {
		_, err := s.service.RegisterFlight(s.ctx, airline2, schedule)
		s.Require().NoError(err)
		s.Equal(2, s.service.GetFlightCount(s.ctx))
		s.Len(s.service.ListFlights(s.ctx, owner), 1)
	})

	s.Run("missing fields", func() {
		_, err := s.service.RegisterFlight(s.ctx, owner, flight.Schedule{Code: "X1", Departure: departure})
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("unknown flight details", func() {
		_, err := s.service.GetFlightDetails(s.ctx, domain.FlightKey{1})
		s.requireCode(err, dErrors.CodeUnknownFlight)
	})
}

func (s *ServiceSuite) TestInsureFlight() {
	s.bootstrap(s.service)
	_, err := s.service.RegisterFlight(s.ctx, owner, flight.Schedule{
		Code: flightCode, Origin: "JFK", Destination: "LHR", Departure: departure,
	})
	s.Require().NoError(err)

	s.Run("another airline cannot reach the flight", func() {
		_, err := s.service.InsureFlight(s.ctx, airline2, flightCode, departure)
		s.requireCode(err, dErrors.CodeUnknownFlight)
	})

	s.Run("opens the flight once", func() {
		f, err := s.service.InsureFlight(s.ctx, owner, flightCode, departure)
		s.Require().NoError(err)
		s.True(f.Insurable)

		f, err = s.service.InsureFlight(s.ctx, owner, flightCode, departure)
		s.Require().NoError(err)
		s.True(f.Insurable)
		s.Len(s.journal.ListByKind(journal.KindFlightInsured), 1)
	})
}

func (s *ServiceSuite) TestProcessFlightStatus() {
	s.bootstrap(s.service)
	key := s.insuredFlight(s.service)

	s.Run("only oracles report", func() {
		_, err := s.service.ProcessFlightStatus(s.ctx, airline2, owner, flightCode, departure, flight.StatusLateAirline)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("unknown status is not a report", func() {
		_, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusUnknown)
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("unknown flight", func() {
		_, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, "ZZ9", departure, flight.StatusOnTime)
		s.requireCode(err, dErrors.CodeUnknownFlight)
	})

	s.Run("late airline scales credit by one and a half", func() {
		total := s.service.GetContractBalance(s.ctx)
		reserve := s.service.GetReserveBalance(s.ctx)

		report, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
		s.Require().NoError(err)
		s.True(report.Applied)
		s.Equal(1, report.Adjusted)
		s.Equal(domain.Amount(250_000_000), report.Bonus)
		s.Equal(flight.StatusLateAirline, report.Flight.Status)

		s.Equal(domain.Amount(750_000_000), s.service.GetInsuranceBalance(s.ctx, passenger, key))
		s.Equal(total, s.service.GetContractBalance(s.ctx))
		s.Equal(reserve-250_000_000, s.service.GetReserveBalance(s.ctx))
		s.NoError(s.service.Audit(s.ctx))
	})

	s.Run("replay is ignored", func() {
		report, err := s.service.ProcessFlightStatus(s.ctx, owner, owner, flightCode, departure, flight.StatusLateAirline)
		s.Require().NoError(err)
		s.False(report.Applied)
		s.Equal(domain.Amount(750_000_000), s.service.GetInsuranceBalance(s.ctx, passenger, key))

		report, err = s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusOnTime)
		s.Require().NoError(err)
		s.False(report.Applied)
		s.Equal(flight.StatusLateAirline, report.Flight.Status)
		s.Len(s.journal.ListByKind(journal.KindMultiplierApplied), 1)
	})

	s.Run("settled flight stops selling cover", func() {
		_, err := s.service.BuyInsurance(s.ctx, stranger, owner, flightCode, departure, 1)
		s.requireCode(err, dErrors.CodeNotInsurable)
	})
}

func (s *ServiceSuite) TestNonAirlineDelayDoesNotScale() {
	s.bootstrap(s.service)
	key := s.insuredFlight(s.service)

	report, err := s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateWeather)
	s.Require().NoError(err)
	s.True(report.Applied)
	s.Zero(report.Adjusted)

	_, err = s.service.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
	s.Require().NoError(err)
	s.Equal(premium, s.service.GetInsuranceBalance(s.ctx, passenger, key))
}

// TestMultiplierShortfallSettledByTopUp runs the reserve dry: 21 full
// policies carry 10.5e9 of bonus against a 10e9 reserve.
func (s *ServiceSuite) TestMultiplierShortfallSettledByTopUp() {
	svc, sink, _ := s.newService(Config{Owner: owner, Oracles: []domain.Principal{oracle}})
	_, err := svc.FundAirline(s.ctx, owner, DefaultFundingThreshold)
	s.Require().NoError(err)
	_, err = svc.RegisterFlight(s.ctx, owner, flight.Schedule{Code: flightCode, Origin: "JFK", Destination: "LHR", Departure: departure})
	s.Require().NoError(err)
	_, err = svc.InsureFlight(s.ctx, owner, flightCode, departure)
	s.Require().NoError(err)

	passengers := make([]domain.Principal, 21)
	for i := range passengers {
		passengers[i] = domain.Principal(fmt.Sprintf("0xpassenger%02d", i))
		_, err := svc.BuyInsurance(s.ctx, passengers[i], owner, flightCode, departure, DefaultMaxPremium)
		s.Require().NoError(err)
	}
	key := svc.GetFlightKey(owner, flightCode, departure)
	total := svc.GetContractBalance(s.ctx)
	credit := domain.Amount(1_500_000_000)

	report, err := svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
	s.Require().NoError(err)
	s.True(report.Applied)
	s.Equal(flight.StatusLateAirline, report.Flight.Status)
	s.Equal(21, report.Adjusted)
	s.Equal(domain.Amount(10_500_000_000), report.Bonus)
	s.Equal(domain.Amount(500_000_000), report.Shortfall)
	s.Equal(credit, svc.GetInsuranceBalance(s.ctx, passengers[0], key))
	s.Zero(svc.GetReserveBalance(s.ctx))
	s.Equal(domain.Amount(500_000_000), svc.GetShortfall(s.ctx, key))
	s.Equal(total, svc.GetContractBalance(s.ctx))
	s.NoError(svc.Audit(s.ctx))

	applied := sink.ListByKind(journal.KindMultiplierApplied)
	s.Require().Len(applied, 1)
	s.Equal("500000000", applied[0].Attributes["shortfall"])

	s.Run("a later report does not erase the delay", func() {
		report, err := svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusOnTime)
		s.Require().NoError(err)
		s.False(report.Applied)
		s.Equal(flight.StatusLateAirline, report.Flight.Status)
	})

	s.Run("payouts past the funded escrow wait", func() {
		// The escrow holds 31e9 against 31.5e9 of credit.
		for _, p := range passengers[:20] {
			_, err := svc.PayOut(s.ctx, p, key, credit)
			s.Require().NoError(err)
		}
		_, err := svc.PayOut(s.ctx, passengers[20], key, credit)
		s.requireCode(err, dErrors.CodeInsufficientFunds)
		s.Equal(credit, svc.GetInsuranceBalance(s.ctx, passengers[20], key))
		s.Zero(svc.GetPayableBalance(s.ctx, passengers[20]))
	})

	s.Run("top-up settles the shortfall", func() {
		details, err := svc.FundAirline(s.ctx, owner, 2_000_000_000)
		s.Require().NoError(err)
		s.True(details.Funded)
		s.Zero(svc.GetShortfall(s.ctx, key))
		s.Equal(domain.Amount(1_500_000_000), svc.GetReserveBalance(s.ctx))
		s.Equal(total+2_000_000_000, svc.GetContractBalance(s.ctx))

		settled := sink.ListByKind(journal.KindBonusSettled)
		s.Require().Len(settled, 1)
		s.Equal(domain.Amount(500_000_000), settled[0].Amount)
		s.Equal(key.String(), settled[0].Subject)
		s.Equal("0", settled[0].Attributes["remaining"])
		s.NoError(svc.Audit(s.ctx))
	})

	s.Run("retried report changes nothing", func() {
		report, err := svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
		s.Require().NoError(err)
		s.False(report.Applied)
		s.Equal(credit, svc.GetInsuranceBalance(s.ctx, passengers[20], key))
		s.Equal(domain.Amount(1_500_000_000), svc.GetReserveBalance(s.ctx))
		s.Len(sink.ListByKind(journal.KindMultiplierApplied), 1)
	})

	s.Run("last payout goes through", func() {
		out, err := svc.PayOut(s.ctx, passengers[20], key, credit)
		s.Require().NoError(err)
		s.Equal(credit, out.Payable)
		s.Equal(total+2_000_000_000, svc.GetContractBalance(s.ctx))
		s.NoError(svc.Audit(s.ctx))
	})
}

func (s *ServiceSuite) TestShortfallsSettleOldestFirst() {
	svc, sink, _ := s.newService(Config{
		Owner:            owner,
		Oracles:          []domain.Principal{oracle},
		FundingThreshold: 100,
		MaxPremium:       1_000,
	})
	_, err := svc.FundAirline(s.ctx, owner, 100)
	s.Require().NoError(err)

	later := departure.Add(24 * time.Hour)
	for _, dep := range []time.Time{departure, later} {
		_, err = svc.RegisterFlight(s.ctx, owner, flight.Schedule{Code: flightCode, Origin: "JFK", Destination: "LHR", Departure: dep})
		s.Require().NoError(err)
		_, err = svc.InsureFlight(s.ctx, owner, flightCode, dep)
		s.Require().NoError(err)
		_, err = svc.BuyInsurance(s.ctx, passenger, owner, flightCode, dep, 1_000)
		s.Require().NoError(err)
	}
	first := svc.GetFlightKey(owner, flightCode, departure)
	second := svc.GetFlightKey(owner, flightCode, later)

	// 500 of bonus each; the reserve funds 100 of the first.
	report, err := svc.ProcessFlightStatus(s.ctx, oracle, owner, flightCode, departure, flight.StatusLateAirline)
	s.Require().NoError(err)
	s.Equal(domain.Amount(400), report.Shortfall)
	s.Equal(domain.Amount(1_500), svc.GetInsuranceBalance(s.ctx, passenger, first))

	laterCtx := requestcontext.WithTime(s.ctx, requestcontext.Now(s.ctx).Add(time.Minute))
	report, err = svc.ProcessFlightStatus(laterCtx, oracle, owner, flightCode, later, flight.StatusLateAirline)
	s.Require().NoError(err)
	s.Equal(domain.Amount(500), report.Shortfall)

	_, err = svc.FundAirline(s.ctx, owner, 600)
	s.Require().NoError(err)
	s.Zero(svc.GetShortfall(s.ctx, first))
	s.Equal(domain.Amount(300), svc.GetShortfall(s.ctx, second))
	s.Zero(svc.GetReserveBalance(s.ctx))

	settled := sink.ListByKind(journal.KindBonusSettled)
	s.Require().Len(settled, 2)
	s.Equal(domain.Amount(400), settled[0].Amount)
	s.Equal(domain.Amount(200), settled[1].Amount)
	s.Equal("300", settled[1].Attributes["remaining"])
	s.NoError(svc.Audit(s.ctx))
}

func (s *ServiceSuite) TestStatusOnFlightWithoutPolicies() {
	s.bootstrap(s.service)
	_, err := s.service.RegisterFlight(s.ctx, airline2, flight.Schedule{
		Code: "QF1", Origin: "SYD", Destination: "LHR", Departure: departure.Add(24 * time.Hour),
	})
	s.Require().NoError(err)

	report, err := s.service.ProcessFlightStatus(s.ctx, oracle, airline2, "QF1", departure.Add(24*time.Hour), flight.StatusLateAirline)
	s.Require().NoError(err)
	s.True(report.Applied)
	s.Zero(report.Bonus)
}
