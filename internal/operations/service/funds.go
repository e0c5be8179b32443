package service

import (
	"context"

	"flightsurety/internal/journal"
	"flightsurety/internal/ledger"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

// Withdraw sends amount of caller's payable balance to the caller through the
// disburser. This is the only place value leaves the ledger. If the
// disbursement fails the balance is restored and the call fails.
func (s *Service) Withdraw(ctx context.Context, caller domain.Principal, amount domain.Amount) (remaining domain.Amount, err error) {
	ctx, done := s.begin(ctx, "withdraw", caller)
	defer done(&err)

	account := ledger.Payable(caller)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.gate.RequireOperational(); err != nil {
			return err
		}
		if amount == 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "withdrawal amount must be greater than zero")
		}
		if amount > s.ledger.Balance(account) {
			return dErrors.New(dErrors.CodeInsufficientCredit, "withdrawal exceeds payable balance")
		}

		if err := s.ledger.Withdraw(account, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "withdrawal failed after validation")
		}
		if err := s.disburser.Disburse(txCtx, caller, amount); err != nil {
			if restoreErr := s.ledger.Deposit(account, amount); restoreErr != nil {
				return dErrors.Wrap(restoreErr, dErrors.CodeInvariantViolation, "failed to restore balance after disbursement error")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "disbursement failed")
		}
		remaining = s.ledger.Balance(account)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "withdrawal disbursed",
		"principal", caller.String(),
		"amount", amount.String(),
	)
	s.publish(ctx, newEvent(ctx, journal.KindWithdrawal, caller, "", amount))
	return remaining, nil
}

// GetContractBalance is the total value held by the ledger.
func (s *Service) GetContractBalance(_ context.Context) domain.Amount {
	var total domain.Amount
	s.tx.view(func() {
		total = s.ledger.Total()
	})
	return total
}

// GetPayableBalance is p's withdrawable balance.
func (s *Service) GetPayableBalance(_ context.Context, p domain.Principal) domain.Amount {
	var b domain.Amount
	s.tx.view(func() {
		b = s.ledger.Balance(ledger.Payable(p))
	})
	return b
}

// GetReserveBalance is the airline funding reserve.
func (s *Service) GetReserveBalance(_ context.Context) domain.Amount {
	var b domain.Amount
	s.tx.view(func() {
		b = s.ledger.Balance(ledger.Reserve())
	})
	return b
}

// Audit verifies that the account balances add up to the ledger total.
func (s *Service) Audit(_ context.Context) error {
	var err error
	s.tx.view(func() {
		err = s.ledger.Audit()
	})
	return err
}
