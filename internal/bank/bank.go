// Package bank fetches balance and transaction data from the Bank of Anthos
// read services. Downstream failures are never surfaced as errors to the
// scoring step: a balance that cannot be read is nil and a transaction list
// that cannot be read is empty, so every snapshot is scorable.
package bank

import "math"

// Transaction is one ledger entry as returned by transactionhistory.
type Transaction struct {
	FromAccountNum string  `json:"fromAccountNum"`
	FromRoutingNum string  `json:"fromRoutingNum"`
	ToAccountNum   string  `json:"toAccountNum"`
	ToRoutingNum   string  `json:"toRoutingNum"`
	Amount         float64 `json:"amount"`
	Description    string  `json:"description"`
	Timestamp      string  `json:"timestamp,omitempty"`
}

// Snapshot is one account's balance and recent transactions captured at a
// single point in time. Built fresh each cycle and discarded after scoring.
type Snapshot struct {
	Balance      *float64      // nil when the balance service was unavailable
	Transactions []Transaction // newest-relevant-first, empty when unavailable
}

// HasBalance reports whether the balance was readable.
func (s *Snapshot) HasBalance() bool {
	return s.Balance != nil
}

// SentFrom reports whether tx moved money out of the given account.
// Direction is inferred by comparing the sender account number to the
// subject account.
func (t Transaction) SentFrom(accountID string) bool {
	return t.FromAccountNum == accountID
}

// Volumes returns the gross sent and received totals for accountID across
// the snapshot's transactions, using absolute amounts.
func (s *Snapshot) Volumes(accountID string) (sent, received float64) {
	for _, tx := range s.Transactions {
		amt := math.Abs(tx.Amount)
		if tx.SentFrom(accountID) {
			sent += amt
		} else {
			received += amt
		}
	}
	return sent, received
}
