package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSaveTimeout bounds a single save to the persister
const DefaultSaveTimeout = 5 * time.Second

// Persister loads and saves the full ledger content.
// Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) ([]Bet, error)
	Save(ctx context.Context, bets []Bet) error
}

// Store is a Ledger mirrored to a Persister after every mutation.
// A failed save does not undo the mutation: the in-memory ledger stays the
// source of truth and the failure is kept in PersistErr until the next
// successful save. Store is not safe for concurrent use.
type Store struct {
	ledger      *Ledger
	persister   Persister
	log         *zap.Logger
	newID       func() string
	saveTimeout time.Duration
	persistErr  error
}

// NewStore loads the ledger from p. A missing or unreadable slot yields an
// empty ledger; records that break bet invariants are dropped.
func NewStore(ctx context.Context, p Persister, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		persister:   p,
		log:         log,
		newID:       uuid.NewString,
		saveTimeout: DefaultSaveTimeout,
	}

	bets, err := p.Load(ctx)
	if err != nil {
		log.Warn("ledger_load_failed", zap.Error(err))
		bets = nil
	}
	s.ledger = New(s.sanitize(bets))
	log.Debug("ledger_loaded", zap.Int("count", s.ledger.Len()))
	return s
}

func (s *Store) sanitize(bets []Bet) []Bet {
	out := make([]Bet, 0, len(bets))
	seen := make(map[string]bool, len(bets))
	for _, b := range bets {
		if b.Result == "" {
			b.Result = ResultPending
		}
		if b.ID == "" {
			b.ID = s.newID()
		}
		if err := b.Fields().Validate(); err != nil {
			s.log.Warn("ledger_record_dropped", zap.String("bet_id", b.ID), zap.Error(err))
			continue
		}
		if seen[b.ID] {
			s.log.Warn("ledger_record_dropped", zap.String("bet_id", b.ID), zap.String("reason", "duplicate id"))
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out
}

// Create appends a new bet with a fresh id and persists the ledger
func (s *Store) Create(ctx context.Context, f Fields) (Bet, error) {
	if err := f.Validate(); err != nil {
		return Bet{}, err
	}
	b := Bet{ID: s.newID()}.apply(f)
	if err := s.ledger.Append(b); err != nil {
		return Bet{}, err
	}
	s.persist(ctx)
	s.log.Debug("bet_created", zap.String("bet_id", b.ID), zap.String("result", string(b.Result)))
	return b, nil
}

// Update replaces the fields of bet id and persists the ledger.
// An unknown id returns ErrNotFound and leaves the ledger untouched.
func (s *Store) Update(ctx context.Context, id string, f Fields) (Bet, error) {
	if err := f.Validate(); err != nil {
		return Bet{}, err
	}
	b, err := s.ledger.Replace(id, f)
	if err != nil {
		return Bet{}, err
	}
	s.persist(ctx)
	s.log.Debug("bet_updated", zap.String("bet_id", id), zap.String("result", string(b.Result)))
	return b, nil
}

// Delete removes bet id and persists the ledger.
// An unknown id returns ErrNotFound and leaves the ledger untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ledger.Remove(id); err != nil {
		return err
	}
	s.persist(ctx)
	s.log.Debug("bet_deleted", zap.String("bet_id", id))
	return nil
}

// Get returns bet id
func (s *Store) Get(id string) (Bet, error) {
	b, ok := s.ledger.Get(id)
	if !ok {
		return Bet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// List returns the bets matching f, newest first
func (s *Store) List(f Filter) []Bet {
	return s.ledger.List(f)
}

// Snapshot returns every bet in insertion order
func (s *Store) Snapshot() []Bet {
	return s.ledger.All()
}

// Len returns the number of bets
func (s *Store) Len() int {
	return s.ledger.Len()
}

// PersistErr returns the error of the last save, or nil if it succeeded
func (s *Store) PersistErr() error {
	return s.persistErr
}

// Flush saves the ledger again and returns the result. It clears
// PersistErr on success.
func (s *Store) Flush(ctx context.Context) error {
	s.persist(ctx)
	return s.persistErr
}

// SetSaveTimeout changes how long a save may take before it counts as failed
func (s *Store) SetSaveTimeout(d time.Duration) {
	s.saveTimeout = d
}

func (s *Store) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, s.ledger.All()); err != nil {
		s.persistErr = err
		s.log.Warn("ledger_persist_failed", zap.Int("count", s.ledger.Len()), zap.Error(err))
		return
	}
	s.persistErr = nil
}
