// Package service is the operations facade: the only entry point into the
// ledger. Every mutating call runs inside one transaction that checks the
// access gate first, validates against every component it will touch, and
// only then applies. A rejected call leaves no partial state.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"flightsurety/internal/airline"
	"flightsurety/internal/flight"
	"flightsurety/internal/gate"
	"flightsurety/internal/insurance"
	"flightsurety/internal/journal"
	"flightsurety/internal/ledger"
	opsmetrics "flightsurety/internal/operations/metrics"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/requestcontext"
)

const (
	// DefaultFundingThreshold is the minimum an airline deposits to become a
	// voting member (10 units of 1e9).
	DefaultFundingThreshold domain.Amount = 10_000_000_000
	// DefaultMaxPremium caps a passenger's cumulative premium per flight.
	DefaultMaxPremium domain.Amount = 1_000_000_000
	DefaultOwnerName                = "Genesis Airline"
)

// Config holds the ledger constants fixed at construction.
type Config struct {
	Owner            domain.Principal
	OwnerName        string
	Oracles          []domain.Principal
	FundingThreshold domain.Amount
	MaxPremium       domain.Amount
	BootstrapSize    int
	TxTimeout        time.Duration
}

// JournalPublisher receives one event per applied mutation, after commit.
type JournalPublisher interface {
	Emit(ctx context.Context, event journal.Event) error
}

// Service orchestrates the access gate, the registries, the insurance pool
// and the value ledger.
type Service struct {
	cfg Config

	gate     *gate.Gate
	airlines *airline.Registry
	flights  *flight.Registry
	pool     *insurance.Pool
	ledger   *ledger.Ledger
	tx       *ledgerTx

	logger    *slog.Logger
	metrics   *opsmetrics.Metrics
	journal   JournalPublisher
	disburser Disburser
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *opsmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithJournal(publisher JournalPublisher) Option {
	return func(s *Service) {
		s.journal = publisher
	}
}

func WithDisburser(d Disburser) Option {
	return func(s *Service) {
		s.disburser = d
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New builds the facade. The owner is pre-registered as the first airline,
// registered but not yet funded.
func New(cfg Config, opts ...Option) (*Service, error) {
	if cfg.OwnerName == "" {
		cfg.OwnerName = DefaultOwnerName
	}
	if cfg.FundingThreshold == 0 {
		cfg.FundingThreshold = DefaultFundingThreshold
	}
	if cfg.MaxPremium == 0 {
		cfg.MaxPremium = DefaultMaxPremium
	}
	if cfg.BootstrapSize == 0 {
		cfg.BootstrapSize = airline.DefaultBootstrapSize
	}
	if cfg.BootstrapSize < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "bootstrap size must be at least 1")
	}

	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.disburser == nil {
		s.disburser = NewLogDisburser(s.logger)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("flightsurety/operations")
	}

	airlines, err := airline.NewRegistry(cfg.Owner, cfg.OwnerName, time.Now(),
		airline.WithBootstrapSize(cfg.BootstrapSize))
	if err != nil {
		return nil, err
	}
	s.airlines = airlines
	s.flights = flight.NewRegistry()
	s.pool = insurance.NewPool(cfg.MaxPremium)
	s.ledger = ledger.New()
	s.gate = gate.New(cfg.Owner, airlines, cfg.Oracles...)
	s.tx = newLedgerTx(cfg.TxTimeout)
	return s, nil
}

// Config returns the constants the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// begin opens a span for op and returns a finisher that records the outcome.
// Use with a named error result: defer done(&err).
func (s *Service) begin(ctx context.Context, op string, caller domain.Principal) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "operations."+op,
		trace.WithAttributes(attribute.String("principal", caller.String())))
	return ctx, func(errp *error) {
		outcome := "ok"
		if err := *errp; err != nil {
			code := dErrors.CodeOf(err)
			outcome = string(code)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			level := slog.LevelInfo
			if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
				level = slog.LevelError
			}
			s.logger.Log(ctx, level, "operation rejected",
				"operation", op,
				"principal", caller.String(),
				"code", outcome,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, outcome, start)
		}
	}
}

// newEvent stamps the request-scoped fields of a journal event.
func newEvent(ctx context.Context, kind journal.Kind, principal domain.Principal, subject string, amount domain.Amount) journal.Event {
	return journal.Event{
		Kind:       kind,
		Principal:  principal,
		Subject:    subject,
		Amount:     amount,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx),
	}
}

// publish runs after commit. Failures are logged and counted; the applied
// operation stands.
func (s *Service) publish(ctx context.Context, events ...journal.Event) {
	if s.metrics != nil {
		s.tx.view(func() {
			s.metrics.SetBalances(uint64(s.ledger.Total()), uint64(s.ledger.Balance(ledger.Reserve())))
		})
	}
	if s.journal == nil {
		return
	}
	for _, event := range events {
		if err := s.journal.Emit(ctx, event); err != nil {
			if s.metrics != nil {
				s.metrics.IncrementJournalFailure()
			}
			s.logger.ErrorContext(ctx, "journal publish failed",
				"kind", string(event.Kind),
				"principal", event.Principal.String(),
				"error", err,
			)
		}
	}
}

// IsOperational reports the kill-switch state.
func (s *Service) IsOperational(_ context.Context) bool {
	var operational bool
	s.tx.view(func() {
		operational = s.gate.IsOperational()
	})
	return operational
}

// SetOperationalStatus flips the kill-switch. It remains callable while the
// service is suspended so the administrator can resume it.
func (s *Service) SetOperationalStatus(ctx context.Context, caller domain.Principal, operational bool) (err error) {
	ctx, done := s.begin(ctx, "set_operational_status", caller)
	defer done(&err)

	var changed bool
	err = s.tx.RunInTx(ctx, func(context.Context) error {
		var err error
		changed, err = s.gate.SetOperational(caller, operational)
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		event := newEvent(ctx, journal.KindOperationalStatusChanged, caller, "", 0)
		event.Attributes = map[string]string{"operational": boolString(operational)}
		s.logger.InfoContext(ctx, "operational status changed",
			"principal", caller.String(),
			"operational", operational,
		)
		s.publish(ctx, event)
	}
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
