package toolkit

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

type Side string

const (
	Debit  Side = "dr"
	Credit Side = "cr"
)

var ErrBadEntry = errors.New("toolkit: ledger entry must be a finite amount on dr or cr")

type Entry struct {
	ID        string    `json:"id"`
	Side      Side      `json:"side"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger is a scratch T-account.
type Ledger struct {
	Entries []Entry `json:"entries"`
}

type Balance struct {
	Debits  float64 `json:"debits"`
	Credits float64 `json:"credits"`
	// Net is debits minus credits.
	Net float64 `json:"net"`
	// Side is "Dr", "Cr" or "balanced".
	Side string `json:"side"`
}

func (l *Ledger) Post(side Side, amount float64, at time.Time) (Entry, error) {
	if side != Debit && side != Credit {
		return Entry{}, ErrBadEntry
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Entry{}, ErrBadEntry
	}
	e := Entry{ID: uuid.NewString(), Side: side, Amount: amount, CreatedAt: at.UTC()}
	l.Entries = append(l.Entries, e)
	return e, nil
}

// Remove drops the entry with id and reports whether it existed.
func (l *Ledger) Remove(id string) bool {
	for i, e := range l.Entries {
		if e.ID == id {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l Ledger) Balance() Balance {
	var b Balance
	for _, e := range l.Entries {
		if e.Side == Debit {
			b.Debits += e.Amount
		} else {
			b.Credits += e.Amount
		}
	}
	b.Net = b.Debits - b.Credits
	switch {
	case b.Net > 0:
		b.Side = "Dr"
	case b.Net < 0:
		b.Side = "Cr"
	default:
		b.Side = "balanced"
	}
	return b
}
