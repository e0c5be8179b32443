package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"flightsurety/internal/flight"
	"flightsurety/internal/insurance"
	"flightsurety/internal/journal"
	"flightsurety/internal/ledger"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
	"flightsurety/pkg/requestcontext"
)

// StatusReport is the outcome of ProcessFlightStatus.
type StatusReport struct {
	Flight flight.Flight
	// Applied is false when the flight already carried a terminal status
	// and the report was ignored.
	Applied bool
	// Adjusted is the number of policies scaled by the multiplier.
	Adjusted int
	// Bonus is the value the multiplier added to the flight's policies.
	Bonus domain.Amount
	// Shortfall is the part of Bonus the reserve could not fund yet. It is
	// settled from later airline funding.
	Shortfall domain.Amount
}

// GetFlightKey derives the flight handle. It reads no state.
func (s *Service) GetFlightKey(airline domain.Principal, code string, departure time.Time) domain.FlightKey {
	return flight.Key(airline, flight.NormalizeCode(code), flight.NormalizeDeparture(departure))
}

// RegisterFlight records a flight for the calling airline.
func (s *Service) RegisterFlight(ctx context.Context, caller domain.Principal, schedule flight.Schedule) (f flight.Flight, err error) {
	ctx, done := s.begin(ctx, "register_flight", caller)
	defer done(&err)

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if err := s.gate.RequireFunded(caller); err != nil {
			return err
		}
		key, err := s.flights.CanRegister(caller, &schedule)
		if err != nil {
			return err
		}
		f = s.flights.ApplyRegistration(key, caller, schedule, now)
		return nil
	})
	if err != nil {
		return flight.Flight{}, err
	}

	s.logger.InfoContext(ctx, "flight registered",
		"principal", caller.String(),
		"flight_key", f.Key.String(),
		"code", f.Code,
	)
	event := newEvent(ctx, journal.KindFlightRegistered, caller, f.Key.String(), 0)
	event.Attributes = map[string]string{
		"code":      f.Code,
		"departure": f.Departure.Format(time.RFC3339),
	}
	s.publish(ctx, event)
	return f, nil
}

// InsureFlight opens the caller's own flight for insurance purchases.
// Insuring an insurable flight again succeeds without change.
func (s *Service) InsureFlight(ctx context.Context, caller domain.Principal, code string, departure time.Time) (f flight.Flight, err error) {
	ctx, done := s.begin(ctx, "insure_flight", caller)
	defer done(&err)

	key := s.GetFlightKey(caller, code, departure)
	var changed bool
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if err := s.gate.RequireFunded(caller); err != nil {
			return err
		}
		var err error
		f, changed, err = s.flights.Insure(key)
		return err
	})
	if err != nil {
		return flight.Flight{}, err
	}
	if changed {
		s.logger.InfoContext(ctx, "flight insurable",
			"principal", caller.String(),
			"flight_key", key.String(),
		)
		s.publish(ctx, newEvent(ctx, journal.KindFlightInsured, caller, key.String(), 0))
	}
	return f, nil
}

// ProcessFlightStatus records the oracle-agreed status of a flight. The first
// LATE_AIRLINE report scales every policy on the flight by 3/2 and moves the
// bonus from the reserve into the flight escrow. Bonus the reserve cannot
// cover is recorded as a shortfall and settled by later airline funding; the
// status and the multiplier are applied regardless. Reports on a flight that
// already has a status are ignored.
func (s *Service) ProcessFlightStatus(ctx context.Context, caller, airlineID domain.Principal, code string, departure time.Time, status flight.StatusCode) (report StatusReport, err error) {
	ctx, done := s.begin(ctx, "process_flight_status", caller)
	defer done(&err)

	key := s.GetFlightKey(airlineID, code, departure)
	now := requestcontext.Now(ctx)
	var plan insurance.MultiplierPlan
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if err := s.gate.RequireOracle(caller); err != nil {
			return err
		}
		apply, err := s.flights.CanReportStatus(key, status)
		if err != nil {
			return err
		}
		if !apply {
			report.Flight, err = s.flights.Get(key)
			return err
		}
		if status == flight.StatusLateAirline {
			plan, err = s.pool.PlanMultiplier(key)
			if err != nil {
				return err
			}
		}

		report.Flight = s.flights.ApplyStatus(key, status, now)
		report.Applied = true
		if status != flight.StatusLateAirline || plan.AlreadyApplied {
			return nil
		}
		s.pool.ApplyMultiplier(plan, now)
		funded := min(plan.TotalBonus, s.ledger.Balance(ledger.Reserve()))
		if funded > 0 {
			if err := s.ledger.Transfer(ledger.Reserve(), ledger.Escrow(key), funded); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "multiplier transfer failed after validation")
			}
		}
		report.Shortfall = plan.TotalBonus - funded
		s.pool.RecordShortfall(key, report.Shortfall, now)
		report.Adjusted = len(plan.Adjustments)
		report.Bonus = plan.TotalBonus
		return nil
	})
	if err != nil {
		return StatusReport{}, err
	}
	if !report.Applied {
		s.logger.DebugContext(ctx, "flight status replay ignored",
			"flight_key", key.String(),
			"status", status.String(),
		)
		return report, nil
	}

	s.logger.InfoContext(ctx, "flight status reported",
		"principal", caller.String(),
		"flight_key", key.String(),
		"status", status.String(),
	)
	event := newEvent(ctx, journal.KindFlightStatusReported, caller, key.String(), 0)
	event.Attributes = map[string]string{"status": status.String()}
	events := []journal.Event{event}
	if status == flight.StatusLateAirline && !plan.AlreadyApplied {
		if s.metrics != nil {
			s.metrics.IncrementMultiplierApplied()
		}
		if report.Shortfall > 0 {
			s.logger.WarnContext(ctx, "reserve short of multiplier bonus",
				"flight_key", key.String(),
				"bonus", report.Bonus.String(),
				"shortfall", report.Shortfall.String(),
			)
		}
		applied := newEvent(ctx, journal.KindMultiplierApplied, caller, key.String(), report.Bonus)
		applied.Attributes = map[string]string{
			"policies":  strconv.Itoa(report.Adjusted),
			"shortfall": report.Shortfall.String(),
		}
		events = append(events, applied)
	}
	s.publish(ctx, events...)
	return report, nil
}

// BonusSettlement is a reserve-to-escrow transfer covering part or all of a
// flight's multiplier shortfall.
type BonusSettlement struct {
	Flight    domain.FlightKey
	Amount    domain.Amount
	Remaining domain.Amount
}

// settleShortfalls funds outstanding multiplier shortfalls from the reserve,
// oldest first, until the reserve runs dry. Callers hold the transaction.
func (s *Service) settleShortfalls() ([]BonusSettlement, error) {
	var out []BonusSettlement
	for _, sf := range s.pool.Shortfalls() {
		amount := min(sf.Amount, s.ledger.Balance(ledger.Reserve()))
		if amount == 0 {
			break
		}
		if err := s.ledger.Transfer(ledger.Reserve(), ledger.Escrow(sf.Flight), amount); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "shortfall transfer failed")
		}
		out = append(out, BonusSettlement{
			Flight:    sf.Flight,
			Amount:    amount,
			Remaining: s.pool.SettleShortfall(sf.Flight, amount),
		})
	}
	return out, nil
}

// settlementEvents logs settlements and builds their journal events. Call
// after commit.
func (s *Service) settlementEvents(ctx context.Context, caller domain.Principal, settled []BonusSettlement) []journal.Event {
	events := make([]journal.Event, 0, len(settled))
	for _, st := range settled {
		s.logger.InfoContext(ctx, "multiplier shortfall settled",
			"flight_key", st.Flight.String(),
			"amount", st.Amount.String(),
			"remaining", st.Remaining.String(),
		)
		event := newEvent(ctx, journal.KindBonusSettled, caller, st.Flight.String(), st.Amount)
		event.Attributes = map[string]string{"remaining": st.Remaining.String()}
		events = append(events, event)
	}
	return events
}

// GetShortfall is the multiplier bonus the reserve still owes the flight's
// escrow.
func (s *Service) GetShortfall(_ context.Context, key domain.FlightKey) domain.Amount {
	var owed domain.Amount
	s.tx.view(func() {
		owed = s.pool.Shortfall(key)
	})
	return owed
}

// GetFlightDetails returns the flight stored under key.
func (s *Service) GetFlightDetails(_ context.Context, key domain.FlightKey) (flight.Flight, error) {
	var (
		f   flight.Flight
		err error
	)
	s.tx.view(func() {
		f, err = s.flights.Get(key)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return flight.Flight{}, dErrors.New(dErrors.CodeUnknownFlight, "flight not found")
		}
		return flight.Flight{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load flight")
	}
	return f, nil
}

// GetFlightCount is the number of registered flights.
func (s *Service) GetFlightCount(_ context.Context) int {
	var n int
	s.tx.view(func() {
		n = s.flights.Count()
	})
	return n
}

// ListFlights returns an airline's flights ordered by departure.
func (s *Service) ListFlights(_ context.Context, airlineID domain.Principal) []flight.Flight {
	var out []flight.Flight
	s.tx.view(func() {
		out = s.flights.ListByAirline(airlineID)
	})
	return out
}
