// Package economy keeps the player's balance and the transaction log every
// balance change is recorded in.
package economy

import (
	"fmt"
	"math"
)

// Direction of a transaction.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// Transaction is an immutable balance change record.
type Transaction struct {
	ID          int       `json:"id"`
	Direction   Direction `json:"direction"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Timestamp   float64   `json:"timestamp"` // sim seconds
}

// State is the persisted ledger.
type State struct {
	Balance      float64       `json:"balance"`
	TotalIncome  float64       `json:"total_income"`
	TotalExpense float64       `json:"total_expense"`
	Infinite     bool          `json:"infinite"`
	Transactions []Transaction `json:"transactions"`
	NextID       int           `json:"next_id"`
}

// Ledger tracks money. The balance only changes together with an appended
// transaction.
type Ledger struct {
	state State
	clock func() float64
}

// NewLedger returns a ledger holding balance. clock supplies transaction
// timestamps.
func NewLedger(balance float64, clock func() float64) *Ledger {
	if clock == nil {
		clock = func() float64 { return 0 }
	}
	return &Ledger{state: State{Balance: balance, NextID: 1}, clock: clock}
}

// Balance is the current funds.
func (l *Ledger) Balance() float64 { return l.state.Balance }

// Infinite reports whether affordability checks are bypassed.
func (l *Ledger) Infinite() bool { return l.state.Infinite }

// SetInfinite toggles infinite-funds mode.
func (l *Ledger) SetInfinite(on bool) { l.state.Infinite = on }

// Transactions returns the log, oldest first.
func (l *Ledger) Transactions() []Transaction { return l.state.Transactions }

// State returns a copy of the persisted ledger.
func (l *Ledger) State() State {
	s := l.state
	s.Transactions = append([]Transaction(nil), l.state.Transactions...)
	return s
}

// Validate checks that a persisted ledger can be restored.
func (s State) Validate() error {
	if s.NextID <= len(s.Transactions) {
		return fmt.Errorf("ledger next id %d overlaps %d transactions", s.NextID, len(s.Transactions))
	}
	return nil
}

// Restore replaces the ledger with persisted state.
func (l *Ledger) Restore(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	l.state = s
	l.state.Transactions = append([]Transaction(nil), s.Transactions...)
	return nil
}

func (l *Ledger) record(dir Direction, amount float64, desc string) {
	l.state.Transactions = append(l.state.Transactions, Transaction{
		ID:          l.state.NextID,
		Direction:   dir,
		Amount:      amount,
		Description: desc,
		Timestamp:   l.clock(),
	})
	l.state.NextID++
}

// AddMoney credits amount. Non-positive amounts are ignored.
func (l *Ledger) AddMoney(amount float64, desc string) {
	if amount <= 0 || math.IsNaN(amount) {
		return
	}
	l.record(Income, amount, desc)
	l.state.Balance += amount
	l.state.TotalIncome += amount
}

// CanAfford reports whether amount can be spent.
func (l *Ledger) CanAfford(amount float64) bool {
	return l.state.Infinite || l.state.Balance >= amount
}

// SpendMoney debits amount and reports whether it did. It never applies a
// partial charge. In infinite mode every charge goes through and the balance
// may go negative.
func (l *Ledger) SpendMoney(amount float64, desc string) bool {
	if amount < 0 || math.IsNaN(amount) {
		return false
	}
	if !l.CanAfford(amount) {
		return false
	}
	l.record(Expense, amount, desc)
	l.state.TotalExpense += amount
	l.state.Balance -= amount
	return true
}
