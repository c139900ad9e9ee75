package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memPersister keeps the last saved payload as encoded bytes
type memPersister struct {
	data    []byte
	saves   int
	saveErr error
	loadErr error
}

func (p *memPersister) Load(ctx context.Context) ([]Bet, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.data == nil {
		return nil, nil
	}
	return Unmarshal(p.data)
}

func (p *memPersister) Save(ctx context.Context, bets []Bet) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	b, err := Marshal(bets)
	if err != nil {
		return err
	}
	p.data = b
	p.saves++
	return nil
}

func fields(day int, event, stake, odds string, result Result) Fields {
	return Fields{
		Date:   NewDate(2024, time.May, day),
		Event:  event,
		Stake:  decimal.RequireFromString(stake),
		Odds:   decimal.RequireFromString(odds),
		Result: result,
	}
}

func newTestStore(t *testing.T, p *memPersister) *Store {
	t.Helper()
	return NewStore(context.Background(), p, zap.NewNop())
}

func TestStoreCreateRoundTrip(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(t, p)
	ctx := context.Background()

	f := fields(3, "PSG-OM", "10", "1.85", ResultPending)
	bet, err := s.Create(ctx, f)
	require.NoError(t, err)
	assert.NotEmpty(t, bet.ID)

	all := s.List(FilterAll)
	require.Len(t, all, 1)
	assert.Equal(t, bet.ID, all[0].ID)
	assert.Equal(t, f, all[0].Fields())
	assert.Equal(t, 1, p.saves)
	assert.NoError(t, s.PersistErr())

	// a second store over the same slot sees the bet
	reloaded := newTestStore(t, p)
	got, err := reloaded.Get(bet.ID)
	require.NoError(t, err)
	assert.Equal(t, "PSG-OM", got.Event)
	assert.True(t, got.Stake.Equal(decimal.NewFromInt(10)))
}

func TestStoreCreateRejectsInvalidFields(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(t, p)

	_, err := s.Create(context.Background(), fields(1, "", "0", "2", ResultWin))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, p.saves)
}

func TestStoreUpdatePreservesID(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(t, p)
	ctx := context.Background()

	first, _ := s.Create(ctx, fields(1, "A-B", "10", "2", ResultPending))
	second, _ := s.Create(ctx, fields(2, "C-D", "5", "3", ResultPending))

	updated, err := s.Update(ctx, first.ID, fields(4, "A-B (FT)", "12", "2.5", ResultWin))
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)

	got, err := s.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "A-B (FT)", got.Event)
	assert.Equal(t, ResultWin, got.Result)
	assert.Equal(t, "2024-05-04", got.Date.String())

	// insertion order is unchanged
	snap := s.Snapshot()
	assert.Equal(t, []string{first.ID, second.ID}, []string{snap[0].ID, snap[1].ID})
	assert.Equal(t, 3, p.saves)
}

func TestStoreUpdateUnknownID(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(t, p)
	ctx := context.Background()
	s.Create(ctx, fields(1, "A-B", "10", "2", ResultPending))

	_, err := s.Update(ctx, "missing", fields(1, "X", "1", "2", ResultWin))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, "A-B", s.Snapshot()[0].Event)
}

func TestStoreDeleteRemovesExactlyOne(t *testing.T) {
	p := &memPersister{}
	s := newTestStore(t, p)
	ctx := context.Background()

	a, _ := s.Create(ctx, fields(1, "A", "10", "2", ResultWin))
	b, _ := s.Create(ctx, fields(1, "B", "10", "2", ResultWin))
	c, _ := s.Create(ctx, fields(2, "C", "10", "2", ResultLose))

	require.NoError(t, s.Delete(ctx, b.ID))
	assert.Equal(t, 2, s.Len())
	_, err := s.Get(b.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Get(a.ID)
	assert.NoError(t, err)
	_, err = s.Get(c.ID)
	assert.NoError(t, err)

	// index stays consistent after removal
	_, err = s.Update(ctx, c.ID, fields(3, "C2", "1", "2", ResultWin))
	require.NoError(t, err)
	assert.Equal(t, "C2", s.Snapshot()[1].Event)

	assert.True(t, errors.Is(s.Delete(ctx, b.ID), ErrNotFound))
	assert.Equal(t, 2, s.Len())
}

func TestStoreListFilterOrder(t *testing.T) {
	s := newTestStore(t, &memPersister{})
	ctx := context.Background()

	p1, _ := s.Create(ctx, fields(1, "old pending", "1", "2", ResultPending))
	s.Create(ctx, fields(9, "win", "1", "2", ResultWin))
	p2, _ := s.Create(ctx, fields(5, "mid pending", "1", "2", ResultPending))
	p3, _ := s.Create(ctx, fields(5, "mid pending 2", "1", "2", ResultPending))
	s.Create(ctx, fields(7, "lose", "1", "2", ResultLose))

	pending := s.List(FilterPending)
	require.Len(t, pending, 3)
	for _, b := range pending {
		assert.Equal(t, ResultPending, b.Result)
	}
	assert.Equal(t, []string{p2.ID, p3.ID, p1.ID}, []string{pending[0].ID, pending[1].ID, pending[2].ID})

	all := s.List(FilterAll)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Date.After(all[i-1].Date))
	}
	assert.Len(t, s.List(FilterWin), 1)
	assert.Len(t, s.List(FilterLose), 1)
}

func TestStorePersistFailureKeepsMutation(t *testing.T) {
	p := &memPersister{saveErr: errors.New("disk full")}
	s := newTestStore(t, p)
	ctx := context.Background()

	bet, err := s.Create(ctx, fields(1, "A", "10", "2", ResultWin))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.EqualError(t, s.PersistErr(), "disk full")

	p.saveErr = nil
	require.NoError(t, s.Delete(ctx, bet.ID))
	assert.NoError(t, s.PersistErr())
	assert.JSONEq(t, `[]`, string(p.data))
}

func TestStoreFlushRetriesSave(t *testing.T) {
	p := &memPersister{saveErr: errors.New("disk full")}
	s := newTestStore(t, p)
	ctx := context.Background()

	_, err := s.Create(ctx, fields(1, "A", "10", "2", ResultWin))
	require.NoError(t, err)
	assert.Error(t, s.Flush(ctx))
	assert.Nil(t, p.data)

	p.saveErr = nil
	require.NoError(t, s.Flush(ctx))
	assert.NoError(t, s.PersistErr())

	saved, err := Unmarshal(p.data)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestStoreLoadFailuresStartEmpty(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		s := newTestStore(t, &memPersister{loadErr: errors.New("unavailable")})
		assert.Equal(t, 0, s.Len())
	})

	t.Run("malformed content", func(t *testing.T) {
		s := newTestStore(t, &memPersister{data: []byte(`{not json`)})
		assert.Equal(t, 0, s.Len())
	})

	t.Run("bad records are dropped", func(t *testing.T) {
		data := `[
			{"id":"a","date":"2024-05-01","event":"A","stake":"10","odds":"2","result":"win"},
			{"id":"a","date":"2024-05-02","event":"dup","stake":"10","odds":"2","result":"win"},
			{"id":"b","date":"2024-05-02","event":"B","stake":"0","odds":"2","result":"lose"},
			{"id":"c","date":"2024-05-03","event":"C","stake":"4","odds":"1.5","result":""}
		]`
		s := newTestStore(t, &memPersister{data: []byte(data)})
		require.Equal(t, 2, s.Len())
		c, err := s.Get("c")
		require.NoError(t, err)
		assert.Equal(t, ResultPending, c.Result)
	})
}

func TestMarshalIdempotent(t *testing.T) {
	data := []byte(`[{"id":"x","date":"2024-05-01","event":"PSG-OM","stake":"10.00","odds":"1.850","result":"win"},` +
		`{"id":"y","date":"2024-05-02","event":"Real-Barca","stake":5,"odds":3,"result":"pending"}]`)

	bets, err := Unmarshal(data)
	require.NoError(t, err)
	first, err := Marshal(bets)
	require.NoError(t, err)

	again, err := Unmarshal(first)
	require.NoError(t, err)
	second, err := Marshal(again)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"stake":"10"`)

	empty, err := Marshal(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

// stalledPersister never answers until the caller gives up
type stalledPersister struct{}

func (stalledPersister) Load(ctx context.Context) ([]Bet, error) { return nil, nil }

func (stalledPersister) Save(ctx context.Context, bets []Bet) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStoreSaveTimesOut(t *testing.T) {
	s := NewStore(context.Background(), stalledPersister{}, nil)
	s.SetSaveTimeout(20 * time.Millisecond)

	start := time.Now()
	bet, err := s.Create(context.Background(), fields(3, "PSG-OM", "10", "1.85", ResultPending))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// the bet is kept in memory and the failure is reported
	assert.ErrorIs(t, s.PersistErr(), context.DeadlineExceeded)
	_, err = s.Get(bet.ID)
	assert.NoError(t, err)
	assert.ErrorIs(t, s.Flush(context.Background()), context.DeadlineExceeded)
}
