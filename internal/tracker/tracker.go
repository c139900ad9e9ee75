// Package tracker is the application service every surface talks to.
// It owns the ledger store, the note and the per-client view state, and
// serializes all access so the bot and the HTTP API can share one ledger.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"betledger/internal/ledger"
	"betledger/internal/metrics"
	"betledger/internal/stats"
)

// ErrNoSelection is returned when submitting an edit with no bet selected
var ErrNoSelection = errors.New("no bet selected for editing")

// NoteSlot persists the free-text note
type NoteSlot interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, text string) error
}

// Tracker coordinates the ledger, the note and client views
type Tracker struct {
	mu          sync.Mutex
	store       *ledger.Store
	notes       NoteSlot
	note        string
	noteErr     error
	saveTimeout time.Duration
	views       map[int64]*View
	log         *zap.Logger
}

// New loads the note and wraps store. A note that cannot be read starts empty.
func New(ctx context.Context, store *ledger.Store, notes NoteSlot, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		store:       store,
		notes:       notes,
		saveTimeout: ledger.DefaultSaveTimeout,
		views:       make(map[int64]*View),
		log:         log,
	}

	note, err := notes.Load(ctx)
	if err != nil {
		log.Warn("note_load_failed", zap.Error(err))
		note = ""
	}
	t.note = note
	t.refreshGauges()
	return t
}

// CreateBet validates raw input and appends a new bet
func (t *Tracker) CreateBet(ctx context.Context, raw ledger.RawFields) (ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.create(ctx, raw)
}

func (t *Tracker) create(ctx context.Context, raw ledger.RawFields) (ledger.Bet, error) {
	f, err := ledger.ParseFields(raw)
	if err != nil {
		return ledger.Bet{}, err
	}
	b, err := t.store.Create(ctx, f)
	if err != nil {
		return ledger.Bet{}, err
	}
	t.mutated("create")
	return b, nil
}

// UpdateBet validates raw input and replaces the fields of bet id
func (t *Tracker) UpdateBet(ctx context.Context, id string, raw ledger.RawFields) (ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.update(ctx, id, raw)
}

func (t *Tracker) update(ctx context.Context, id string, raw ledger.RawFields) (ledger.Bet, error) {
	f, err := ledger.ParseFields(raw)
	if err != nil {
		return ledger.Bet{}, err
	}
	b, err := t.store.Update(ctx, id, f)
	if err != nil {
		return ledger.Bet{}, err
	}
	t.mutated("update")
	return b, nil
}

// DeleteBet removes bet id
func (t *Tracker) DeleteBet(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delete(ctx, id)
}

func (t *Tracker) delete(ctx context.Context, id string) error {
	if err := t.store.Delete(ctx, id); err != nil {
		return err
	}
	for _, v := range t.views {
		if v.EditingID == id {
			v.closeForm()
		}
	}
	t.mutated("delete")
	return nil
}

// Bet returns bet id
func (t *Tracker) Bet(id string) (ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Get(id)
}

// Bets returns the bets matching f, newest first
func (t *Tracker) Bets(f ledger.Filter) []ledger.Bet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.List(f)
}

// Summary recomputes the scalar statistics
func (t *Tracker) Summary() stats.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stats.Summarize(t.store.Snapshot())
}

// Series recomputes the cumulative profit series
func (t *Tracker) Series() []stats.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stats.ProfitSeries(t.store.Snapshot())
}

// Note returns the current note text
func (t *Tracker) Note() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.note
}

// SetNote replaces the note. A failed save keeps the new text in memory
// and is reported by PersistWarning.
func (t *Tracker) SetNote(ctx context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.note = text
	if err := t.saveNote(ctx); err != nil {
		t.noteErr = err
		metrics.PersistFailures.WithLabelValues("note").Inc()
		t.log.Warn("note_persist_failed", zap.Int("length", len(text)), zap.Error(err))
		return
	}
	t.noteErr = nil
	metrics.Mutations.WithLabelValues("note").Inc()
}

// SetSaveTimeout bounds every ledger and note save. Saves run while the
// tracker is locked, so a stalled backend holds callers up to d.
func (t *Tracker) SetSaveTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveTimeout = d
	t.store.SetSaveTimeout(d)
}

func (t *Tracker) saveNote(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, t.saveTimeout)
	defer cancel()
	return t.notes.Save(ctx, t.note)
}

// PersistWarning returns the pending save failures, or nil when every
// slot matches memory
func (t *Tracker) PersistWarning() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistWarning()
}

func (t *Tracker) persistWarning() error {
	var errs []error
	if err := t.store.PersistErr(); err != nil {
		errs = append(errs, fmt.Errorf("bets not saved: %w", err))
	}
	if t.noteErr != nil {
		errs = append(errs, fmt.Errorf("note not saved: %w", t.noteErr))
	}
	return errors.Join(errs...)
}

// Resync retries the saves that failed since the last success and returns
// what is still unsaved. Slots already in sync are not written.
func (t *Tracker) Resync(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.store.PersistErr() != nil {
		if err := t.store.Flush(ctx); err != nil {
			metrics.PersistFailures.WithLabelValues("bets").Inc()
		}
	}
	if t.noteErr != nil {
		if err := t.saveNote(ctx); err != nil {
			t.noteErr = err
			metrics.PersistFailures.WithLabelValues("note").Inc()
		} else {
			t.noteErr = nil
		}
	}
	return t.persistWarning()
}

// View returns a copy of the client's view state
func (t *Tracker) View(client int64) View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.view(client)
}

func (t *Tracker) view(client int64) *View {
	v, ok := t.views[client]
	if !ok {
		v = newView()
		t.views[client] = v
	}
	return v
}

// SetFilter selects the list tab
func (t *Tracker) SetFilter(client int64, f ledger.Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view(client).Filter = f
}

// ToggleDeleteMode enters or leaves delete mode and returns the new mode.
// Entering it leaves edit selection.
func (t *Tracker) ToggleDeleteMode(client int64) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view(client).toggle(ModeConfirmingDelete)
}

// ToggleEditMode enters or leaves edit selection and returns the new mode.
// Entering it leaves delete mode.
func (t *Tracker) ToggleEditMode(client int64) Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view(client).toggle(ModeSelectingForEdit)
}

// OpenForm opens an empty form for a new bet
func (t *Tracker) OpenForm(client int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view(client)
	v.closeForm()
	v.FormOpen = true
}

// CloseForm cancels the form and any edit selection
func (t *Tracker) CloseForm(client int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view(client).closeForm()
}

// Cancel returns the client to plain browsing with the form closed
func (t *Tracker) Cancel(client int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view(client)
	v.closeForm()
	v.Mode = ModeBrowsing
}

// SelectBet applies the client's mode to bet id. In delete mode the bet is
// removed and the mode stays on, so several bets can be tapped in a row.
// In edit selection the bet is loaded into the form and the mode ends.
func (t *Tracker) SelectBet(ctx context.Context, client int64, id string) (SelectAction, ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.view(client)
	b, err := t.store.Get(id)
	if err != nil {
		return SelectNone, ledger.Bet{}, err
	}

	switch v.Mode {
	case ModeConfirmingDelete:
		if err := t.delete(ctx, id); err != nil {
			return SelectNone, ledger.Bet{}, err
		}
		return SelectDeleted, b, nil
	case ModeSelectingForEdit:
		v.EditingID = id
		v.FormOpen = true
		v.Mode = ModeBrowsing
		return SelectEditing, b, nil
	default:
		return SelectNone, b, nil
	}
}

// Submit saves the form: it updates the bet being edited, or creates a new
// one. On success the form closes; on a validation error it stays open.
func (t *Tracker) Submit(ctx context.Context, client int64, raw ledger.RawFields) (ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submit(ctx, t.view(client), raw)
}

// SubmitEdit is Submit restricted to a bet selected for editing
func (t *Tracker) SubmitEdit(ctx context.Context, client int64, raw ledger.RawFields) (ledger.Bet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view(client)
	if v.EditingID == "" {
		return ledger.Bet{}, ErrNoSelection
	}
	return t.submit(ctx, v, raw)
}

func (t *Tracker) submit(ctx context.Context, v *View, raw ledger.RawFields) (ledger.Bet, error) {
	var (
		b   ledger.Bet
		err error
	)
	if v.EditingID != "" {
		b, err = t.update(ctx, v.EditingID, raw)
	} else {
		b, err = t.create(ctx, raw)
	}
	if err != nil {
		return ledger.Bet{}, err
	}
	v.closeForm()
	return b, nil
}

func (t *Tracker) mutated(op string) {
	metrics.Mutations.WithLabelValues(op).Inc()
	if t.store.PersistErr() != nil {
		metrics.PersistFailures.WithLabelValues("bets").Inc()
	}
	t.refreshGauges()
}

func (t *Tracker) refreshGauges() {
	c := stats.CountBets(t.store.Snapshot())
	metrics.Bets.WithLabelValues(string(ledger.ResultWin)).Set(float64(c.Win))
	metrics.Bets.WithLabelValues(string(ledger.ResultLose)).Set(float64(c.Lose))
	metrics.Bets.WithLabelValues(string(ledger.ResultPending)).Set(float64(c.Pending))
}
