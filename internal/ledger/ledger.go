package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// Filter selects which bets List returns
type Filter string

const (
	FilterAll     Filter = "all"
	FilterWin     Filter = "win"
	FilterLose    Filter = "lose"
	FilterPending Filter = "pending"
)

// Filters lists every filter in tab order
var Filters = []Filter{FilterAll, FilterWin, FilterLose, FilterPending}

// ParseFilter parses a filter name. An empty string is FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterWin, FilterLose, FilterPending:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("invalid filter %q: must be all, win, lose or pending", s)
	}
}

// Match reports whether b passes the filter
func (f Filter) Match(b Bet) bool {
	return f == FilterAll || string(f) == string(b.Result)
}

// Ledger is an insertion-ordered collection of bets indexed by id.
// It does no I/O; see Store for the persisted variant.
type Ledger struct {
	bets  []Bet
	index map[string]int
}

// New builds a ledger from bets in the given order.
// Bets repeating an id already seen are skipped.
func New(bets []Bet) *Ledger {
	l := &Ledger{
		bets:  make([]Bet, 0, len(bets)),
		index: make(map[string]int, len(bets)),
	}
	for _, b := range bets {
		_ = l.Append(b)
	}
	return l
}

// Len returns the number of bets
func (l *Ledger) Len() int {
	return len(l.bets)
}

// Append adds b at the end of the ledger
func (l *Ledger) Append(b Bet) error {
	if _, exists := l.index[b.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
	}
	l.index[b.ID] = len(l.bets)
	l.bets = append(l.bets, b)
	return nil
}

// Get returns the bet with the given id
func (l *Ledger) Get(id string) (Bet, bool) {
	i, ok := l.index[id]
	if !ok {
		return Bet{}, false
	}
	return l.bets[i], true
}

// Replace overwrites the fields of bet id in place, keeping its id and position
func (l *Ledger) Replace(id string, f Fields) (Bet, error) {
	i, ok := l.index[id]
	if !ok {
		return Bet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.bets[i] = l.bets[i].apply(f)
	return l.bets[i], nil
}

// Remove deletes bet id
func (l *Ledger) Remove(id string) error {
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	l.bets = append(l.bets[:i], l.bets[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.bets); j++ {
		l.index[l.bets[j].ID] = j
	}
	return nil
}

// All returns a copy of every bet in insertion order
func (l *Ledger) All() []Bet {
	out := make([]Bet, len(l.bets))
	copy(out, l.bets)
	return out
}

// List returns the bets matching f, newest date first.
// Bets on the same date keep their insertion order.
func (l *Ledger) List(f Filter) []Bet {
	out := make([]Bet, 0, len(l.bets))
	for _, b := range l.bets {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}
