// Package stats derives aggregate figures from a ledger snapshot.
// Nothing here keeps state: every figure is recomputed from the bets passed in.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"betledger/internal/ledger"
)

var hundred = decimal.NewFromInt(100)

// Counts tallies bets by result
type Counts struct {
	Total   int `json:"total"`
	Win     int `json:"win"`
	Lose    int `json:"lose"`
	Pending int `json:"pending"`
}

// For returns the count shown on the tab of filter f
func (c Counts) For(f ledger.Filter) int {
	switch f {
	case ledger.FilterWin:
		return c.Win
	case ledger.FilterLose:
		return c.Lose
	case ledger.FilterPending:
		return c.Pending
	default:
		return c.Total
	}
}

// Point is one day of the cumulative profit series
type Point struct {
	Date       ledger.Date     `json:"date"`
	Label      string          `json:"label"`
	Cumulative decimal.Decimal `json:"profit"`
}

// Summary bundles every scalar statistic
type Summary struct {
	Counts     Counts          `json:"counts"`
	TotalStake decimal.Decimal `json:"total_stake"`
	NetProfit  decimal.Decimal `json:"net_profit"`
	WinRate    decimal.Decimal `json:"win_rate"`
}

// CountBets tallies bets by result
func CountBets(bets []ledger.Bet) Counts {
	c := Counts{Total: len(bets)}
	for _, b := range bets {
		switch b.Result {
		case ledger.ResultWin:
			c.Win++
		case ledger.ResultLose:
			c.Lose++
		case ledger.ResultPending:
			c.Pending++
		}
	}
	return c
}

// TotalStake sums the stake of every bet, pending included
func TotalStake(bets []ledger.Bet) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bets {
		total = total.Add(b.Stake)
	}
	return total
}

// NetProfit sums the profit of settled bets
func NetProfit(bets []ledger.Bet) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bets {
		if p, ok := b.Profit(); ok {
			total = total.Add(p)
		}
	}
	return total
}

// WinRate returns wins / settled bets as a percentage rounded to one decimal.
// It is zero when no bet is settled.
func WinRate(bets []ledger.Bet) decimal.Decimal {
	c := CountBets(bets)
	settled := c.Win + c.Lose
	if settled == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(c.Win)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(settled))).
		Round(1)
}

// Summarize computes all scalar statistics at once
func Summarize(bets []ledger.Bet) Summary {
	return Summary{
		Counts:     CountBets(bets),
		TotalStake: TotalStake(bets),
		NetProfit:  NetProfit(bets),
		WinRate:    WinRate(bets),
	}
}

// ProfitSeries returns the running settled profit, one point per calendar day
// with at least one settled bet, oldest day first. Cumulative values are
// rounded to cents; the running total itself is kept exact.
func ProfitSeries(bets []ledger.Bet) []Point {
	settled := make([]ledger.Bet, 0, len(bets))
	for _, b := range bets {
		if b.Result.Settled() {
			settled = append(settled, b)
		}
	}
	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].Date.Before(settled[j].Date)
	})

	points := make([]Point, 0)
	running := decimal.Zero
	for i := 0; i < len(settled); {
		day := settled[i].Date
		for ; i < len(settled) && settled[i].Date.Equal(day); i++ {
			p, _ := settled[i].Profit()
			running = running.Add(p)
		}
		points = append(points, Point{
			Date:       day,
			Label:      day.DayMonth(),
			Cumulative: running.Round(2),
		})
	}
	return points
}
