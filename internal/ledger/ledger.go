// Package ledger holds escrowed value. Every unit the network holds sits in
// exactly one account, and the ledger total only moves on Deposit (value
// enters) and Withdraw (value leaves).
//
// A Ledger is not safe for concurrent use; the operations service serialises
// access through its transaction boundary.
package ledger

import (
	"fmt"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

// AccountKind partitions ledger accounts by who may draw on them.
type AccountKind string

const (
	// KindReserve is the airline funding pool. Airlines cannot withdraw it;
	// it backs the late-airline multiplier.
	KindReserve AccountKind = "reserve"
	// KindEscrow holds premiums (and multiplier bonuses) for one flight.
	KindEscrow AccountKind = "escrow"
	// KindPayable is a principal's withdrawable balance.
	KindPayable AccountKind = "payable"
)

// Account addresses one balance.
type Account struct {
	Kind  AccountKind
	Owner string
}

func Reserve() Account { return Account{Kind: KindReserve} }

func Escrow(key domain.FlightKey) Account {
	return Account{Kind: KindEscrow, Owner: key.String()}
}

func Payable(p domain.Principal) Account {
	return Account{Kind: KindPayable, Owner: p.String()}
}

func (a Account) String() string {
	if a.Owner == "" {
		return string(a.Kind)
	}
	return string(a.Kind) + ":" + a.Owner
}

// Ledger maps accounts to balances.
type Ledger struct {
	balances map[Account]domain.Amount
	total    domain.Amount
}

func New() *Ledger {
	return &Ledger{balances: make(map[Account]domain.Amount)}
}

// Balance returns the balance of a, zero for unknown accounts.
func (l *Ledger) Balance(a Account) domain.Amount {
	return l.balances[a]
}

// Total is the value currently held across all accounts.
func (l *Ledger) Total() domain.Amount {
	return l.total
}

// CanDeposit reports whether amount can enter a without overflow.
func (l *Ledger) CanDeposit(a Account, amount domain.Amount) error {
	if _, ok := l.total.Add(amount); !ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "ledger total would overflow")
	}
	if _, ok := l.balances[a].Add(amount); !ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "account balance would overflow")
	}
	return nil
}

// Deposit records value entering the ledger.
func (l *Ledger) Deposit(a Account, amount domain.Amount) error {
	if err := l.CanDeposit(a, amount); err != nil {
		return err
	}
	l.total += amount
	l.balances[a] += amount
	return nil
}

// CanTransfer reports whether amount can move from one account to another.
func (l *Ledger) CanTransfer(from, to Account, amount domain.Amount) error {
	if _, ok := l.balances[from].Sub(amount); !ok {
		return dErrors.New(dErrors.CodeInsufficientFunds,
			fmt.Sprintf("account %s holds less than %s", from, amount))
	}
	if from == to {
		return nil
	}
	if _, ok := l.balances[to].Add(amount); !ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "account balance would overflow")
	}
	return nil
}

// Transfer moves value between accounts; the total is unchanged.
func (l *Ledger) Transfer(from, to Account, amount domain.Amount) error {
	if err := l.CanTransfer(from, to, amount); err != nil {
		return err
	}
	l.debit(from, amount)
	l.balances[to] += amount
	return nil
}

// CanWithdraw reports whether amount can leave a.
func (l *Ledger) CanWithdraw(a Account, amount domain.Amount) error {
	if _, ok := l.balances[a].Sub(amount); !ok {
		return dErrors.New(dErrors.CodeInsufficientFunds,
			fmt.Sprintf("account %s holds less than %s", a, amount))
	}
	return nil
}

// Withdraw records value leaving the ledger.
func (l *Ledger) Withdraw(a Account, amount domain.Amount) error {
	if err := l.CanWithdraw(a, amount); err != nil {
		return err
	}
	l.debit(a, amount)
	l.total -= amount
	return nil
}

func (l *Ledger) debit(a Account, amount domain.Amount) {
	left := l.balances[a] - amount
	if left == 0 {
		delete(l.balances, a)
		return
	}
	l.balances[a] = left
}

// Audit checks that the account balances add up to the total.
func (l *Ledger) Audit() error {
	var sum domain.Amount
	for a, b := range l.balances {
		next, ok := sum.Add(b)
		if !ok {
			return dErrors.New(dErrors.CodeInvariantViolation, "account sum overflows at "+a.String())
		}
		sum = next
	}
	if sum != l.total {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("accounts sum to %s but total is %s", sum, l.total))
	}
	return nil
}
