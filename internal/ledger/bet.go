package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Result is the outcome of a bet
type Result string

const (
	ResultWin     Result = "win"
	ResultLose    Result = "lose"
	ResultPending Result = "pending"
)

// ParseResult parses a result name. An empty string is pending.
func ParseResult(s string) (Result, error) {
	switch r := Result(strings.ToLower(strings.TrimSpace(s))); r {
	case ResultWin, ResultLose, ResultPending:
		return r, nil
	case "":
		return ResultPending, nil
	default:
		return "", fmt.Errorf("invalid result %q: must be win, lose or pending", s)
	}
}

// Valid reports whether r is one of the three known results
func (r Result) Valid() bool {
	return r == ResultWin || r == ResultLose || r == ResultPending
}

// Settled reports whether the bet has a known outcome
func (r Result) Settled() bool {
	return r == ResultWin || r == ResultLose
}

// Bet represents one recorded wager
type Bet struct {
	ID     string          `json:"id"`
	Date   Date            `json:"date"`
	Event  string          `json:"event"`
	Stake  decimal.Decimal `json:"stake"`
	Odds   decimal.Decimal `json:"odds"`
	Result Result          `json:"result"`
}

// Fields holds the user-editable part of a bet
type Fields struct {
	Date   Date
	Event  string
	Stake  decimal.Decimal
	Odds   decimal.Decimal
	Result Result
}

// Fields returns the editable fields of b
func (b Bet) Fields() Fields {
	return Fields{Date: b.Date, Event: b.Event, Stake: b.Stake, Odds: b.Odds, Result: b.Result}
}

// Profit returns stake*(odds-1) for a win and -stake for a loss.
// ok is false for pending bets.
func (b Bet) Profit() (profit decimal.Decimal, ok bool) {
	switch b.Result {
	case ResultWin:
		return b.Stake.Mul(b.Odds.Sub(decimal.NewFromInt(1))), true
	case ResultLose:
		return b.Stake.Neg(), true
	default:
		return decimal.Zero, false
	}
}

// Validate checks the invariants every stored bet must hold
func (f Fields) Validate() error {
	verr := &ValidationError{}
	if f.Date.IsZero() {
		verr.add("date", "is required")
	}
	if strings.TrimSpace(f.Event) == "" {
		verr.add("event", "is required")
	}
	if !f.Stake.IsPositive() {
		verr.add("stake", "must be greater than 0")
	}
	if !f.Odds.IsPositive() {
		verr.add("odds", "must be greater than 0")
	}
	if !f.Result.Valid() {
		verr.add("result", "must be one of win lose pending")
	}
	return verr.orNil()
}

func (b Bet) apply(f Fields) Bet {
	b.Date = f.Date
	b.Event = strings.TrimSpace(f.Event)
	b.Stake = f.Stake
	b.Odds = f.Odds
	b.Result = f.Result
	return b
}
