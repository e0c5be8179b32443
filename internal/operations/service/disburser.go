package service

import (
	"context"
	"log/slog"

	"flightsurety/pkg/domain"
)

// Disburser moves value out of the ledger to an external holder. It is called
// inside the withdrawal transaction after the payable balance is debited; an
// error restores the balance.
type Disburser interface {
	Disburse(ctx context.Context, to domain.Principal, amount domain.Amount) error
}

// LogDisburser records disbursements in the log. It stands in for a payment
// rail when none is configured.
type LogDisburser struct {
	logger *slog.Logger
}

func NewLogDisburser(logger *slog.Logger) *LogDisburser {
	return &LogDisburser{logger: logger}
}

func (d *LogDisburser) Disburse(ctx context.Context, to domain.Principal, amount domain.Amount) error {
	d.logger.InfoContext(ctx, "disbursement sent",
		"to", to.String(),
		"amount", amount.String(),
	)
	return nil
}

// DisburserFunc adapts a function to Disburser.
type DisburserFunc func(ctx context.Context, to domain.Principal, amount domain.Amount) error

func (f DisburserFunc) Disburse(ctx context.Context, to domain.Principal, amount domain.Amount) error {
	return f(ctx, to, amount)
}
