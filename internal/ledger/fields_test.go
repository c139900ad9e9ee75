package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		f, err := ParseFields(RawFields{
			Date:   "2024-03-05",
			Event:  "  PSG-OM ",
			Stake:  "10.50",
			Odds:   "1,85",
			Result: "WIN",
		})
		require.NoError(t, err)
		assert.True(t, f.Date.Equal(NewDate(2024, time.March, 5)))
		assert.Equal(t, "PSG-OM", f.Event)
		assert.True(t, f.Stake.Equal(decimal.RequireFromString("10.5")))
		assert.True(t, f.Odds.Equal(decimal.RequireFromString("1.85")))
		assert.Equal(t, ResultWin, f.Result)
	})

	t.Run("empty result defaults to pending", func(t *testing.T) {
		f, err := ParseFields(RawFields{Date: "05/03/2024", Event: "Real-Barca", Stake: "5", Odds: "2.1"})
		require.NoError(t, err)
		assert.Equal(t, ResultPending, f.Result)
		assert.Equal(t, "2024-03-05", f.Date.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := ParseFields(RawFields{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "is required", verr.Fields["date"])
		assert.Equal(t, "is required", verr.Fields["event"])
		assert.Equal(t, "is required", verr.Fields["stake"])
		assert.Equal(t, "is required", verr.Fields["odds"])
		assert.NotContains(t, verr.Fields, "result")
	})

	t.Run("non numeric and non positive amounts", func(t *testing.T) {
		_, err := ParseFields(RawFields{Date: "2024-03-05", Event: "x", Stake: "abc", Odds: "0"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be a number", verr.Fields["stake"])
		assert.Equal(t, "must be greater than 0", verr.Fields["odds"])
	})

	t.Run("negative stake", func(t *testing.T) {
		_, err := ParseFields(RawFields{Date: "2024-03-05", Event: "x", Stake: "-3", Odds: "2"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be greater than 0", verr.Fields["stake"])
	})

	t.Run("bad date and result", func(t *testing.T) {
		_, err := ParseFields(RawFields{Date: "tomorrow", Event: "x", Stake: "1", Odds: "2", Result: "draw"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be a date (YYYY-MM-DD)", verr.Fields["date"])
		assert.Equal(t, "must be one of win lose pending", verr.Fields["result"])
		assert.Contains(t, err.Error(), "date must be a date")
	})
}

func TestBetProfit(t *testing.T) {
	stake := decimal.NewFromInt(10)
	odds := decimal.NewFromInt(2)

	win := Bet{Stake: stake, Odds: odds, Result: ResultWin}
	p, ok := win.Profit()
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(10)))

	lose := Bet{Stake: decimal.NewFromInt(5), Odds: decimal.NewFromInt(3), Result: ResultLose}
	p, ok = lose.Profit()
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.NewFromInt(-5)))

	pending := Bet{Stake: stake, Odds: odds, Result: ResultPending}
	_, ok = pending.Profit()
	assert.False(t, ok)
}

func TestParseResultAndFilter(t *testing.T) {
	r, err := ParseResult("Lose")
	require.NoError(t, err)
	assert.Equal(t, ResultLose, r)
	_, err = ParseResult("void")
	assert.Error(t, err)

	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	f, err = ParseFilter("PENDING")
	require.NoError(t, err)
	assert.Equal(t, FilterPending, f)
	_, err = ParseFilter("settled")
	assert.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-12-31"`)))
	assert.Equal(t, "2024-12-31", d.String())
	assert.Equal(t, "31/12/24", d.Short())
	assert.Equal(t, "31/12", d.DayMonth())

	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-01-02T15:04:05Z"`)))
	assert.Equal(t, "2024-01-02", d.String())

	assert.Error(t, d.UnmarshalJSON([]byte(`"not a date"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`12`)))

	b, err := NewDate(2024, time.February, 29).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(b))
}
