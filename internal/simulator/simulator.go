// v2
// internal/simulator/simulator.go

// Package simulator implements the live-polling test facility: per event,
// the full recorded time set is shuffled once and then released in
// randomized-size batches on demand, so downstream polling clients can be
// exercised against realistic uneven arrival bursts.
package simulator

import (
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/etkk55/enduro-backend/internal/models"
)

// ErrNoTimes is returned by an explicit Reset when the event has no
// recorded times. An implicit reset (first Poll) deliberately swallows the
// same condition into an empty complete response.
var ErrNoTimes = errors.New("no recorded times for event")

// DefaultBatchSize is the batch used when a poll does not request one.
const DefaultBatchSize = 15

// Source supplies the joined time feed for an event.
type Source interface {
	ReleasedTimesFor(eventID string) ([]models.ReleasedTime, error)
}

// ResetResult reports the freshly installed simulation.
type ResetResult struct {
	TotalTimes int `json:"totalTimes"`
	Released   int `json:"released"`
	Remaining  int `json:"remaining"`
}

// PollResult is one released batch plus release-progress counters.
type PollResult struct {
	NewTimes       []models.ReleasedTime `json:"newTimes"`
	TotalTimes     int                   `json:"totalTimes"`
	Released       int                   `json:"released"`
	Remaining      int                   `json:"remaining"`
	Complete       bool                  `json:"simulationComplete"`
	BatchRequested int                   `json:"batchRequested"`
	BatchActual    int                   `json:"batchActual"`
	LastPolledAt   time.Time             `json:"lastPolledAt"`
}

// Status is the read-only view of an event's simulation. The counter and
// completion fields are always serialized for an active simulation; a zero
// released count is a real value, not an absent one.
type Status struct {
	Active       bool       `json:"active"`
	TotalTimes   int        `json:"totalTimes"`
	Released     int        `json:"released"`
	Remaining    int        `json:"remaining"`
	Complete     bool       `json:"simulationComplete"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	LastPolledAt *time.Time `json:"lastPolledAt,omitempty"`
}

// state is one event's simulation: the fixed shuffled order, the release
// cursor, and the accumulated released records.
type state struct {
	order     []models.ReleasedTime
	released  []models.ReleasedTime
	cursor    int
	startedAt time.Time
	lastPoll  time.Time
}

// slot owns the state for one event identity. The slot mutex serializes
// Reset/Poll/Status for that event; slots for different events never block
// each other.
type slot struct {
	mu sync.Mutex
	st *state
}

// Manager is the service-owned simulation table, keyed by event identity.
// It lives for the process lifetime, holds no durability guarantee, and is
// injected into the handler layer rather than living in package scope.
type Manager struct {
	src Source
	log *slog.Logger

	mu    sync.Mutex
	slots map[string]*slot

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewManager wires a simulator over the given time feed.
func NewManager(src Source, log *slog.Logger) *Manager {
	return newManager(src, log, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewManagerWithRand injects a deterministic random source, used by tests.
func NewManagerWithRand(src Source, log *slog.Logger, rng *rand.Rand) *Manager {
	return newManager(src, log, rng)
}

func newManager(src Source, log *slog.Logger, rng *rand.Rand) *Manager {
	return &Manager{
		src:   src,
		log:   log.With(slog.String("component", "live_simulator")),
		slots: make(map[string]*slot),
		rng:   rng,
	}
}

func (m *Manager) slotFor(eventID string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[eventID]
	if !ok {
		s = &slot{}
		m.slots[eventID] = s
	}
	return s
}

// shuffle draws a fresh uniformly random permutation of the feed.
func (m *Manager) shuffle(feed []models.ReleasedTime) []models.ReleasedTime {
	order := make([]models.ReleasedTime, len(feed))
	copy(order, feed)
	m.rngMu.Lock()
	m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	m.rngMu.Unlock()
	return order
}

func (m *Manager) intn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

// Reset loads every recorded time for the event, shuffles it, and installs
// it wholesale as the event's simulation with the cursor at zero. An event
// with no recorded times is a reportable error.
func (m *Manager) Reset(eventID string) (ResetResult, error) {
	s := m.slotFor(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	feed, err := m.src.ReleasedTimesFor(eventID)
	if err != nil {
		return ResetResult{}, err
	}
	if len(feed) == 0 {
		return ResetResult{}, ErrNoTimes
	}

	s.st = &state{
		order:     m.shuffle(feed),
		startedAt: time.Now().UTC(),
	}
	m.log.Info("simulation_reset", slog.String("event", eventID), slog.Int("total", len(feed)))
	return ResetResult{TotalTimes: len(feed), Released: 0, Remaining: len(feed)}, nil
}

// Poll releases the next randomized-size batch. With no installed state it
// auto-initializes first; if that finds zero times it returns a well-formed
// empty completion instead of erroring (the intentional asymmetry with the
// explicit Reset). Polling after exhaustion keeps returning empty complete
// batches without reshuffling.
func (m *Manager) Poll(eventID string, batchSize int) (PollResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := m.slotFor(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st == nil {
		feed, err := m.src.ReleasedTimesFor(eventID)
		if err != nil {
			return PollResult{}, err
		}
		if len(feed) == 0 {
			return PollResult{
				NewTimes:       []models.ReleasedTime{},
				Complete:       true,
				BatchRequested: batchSize,
				LastPolledAt:   time.Now().UTC(),
			}, nil
		}
		s.st = &state{
			order:     m.shuffle(feed),
			startedAt: time.Now().UTC(),
		}
		m.log.Info("simulation_autostarted", slog.String("event", eventID), slog.Int("total", len(feed)))
	}
	st := s.st

	// Each poll releases between 50% and 100% of the requested batch,
	// never zero while records remain.
	minBatch := (batchSize + 1) / 2
	actual := minBatch + m.intn(batchSize-minBatch+1)

	end := st.cursor + actual
	if end > len(st.order) {
		end = len(st.order)
	}
	batch := st.order[st.cursor:end]
	st.cursor = end
	st.released = append(st.released, batch...)
	st.lastPoll = time.Now().UTC()

	out := PollResult{
		NewTimes:       append([]models.ReleasedTime{}, batch...),
		TotalTimes:     len(st.order),
		Released:       len(st.released),
		Remaining:      len(st.order) - st.cursor,
		Complete:       st.cursor >= len(st.order),
		BatchRequested: batchSize,
		BatchActual:    len(batch),
		LastPolledAt:   st.lastPoll,
	}
	m.log.Info("simulation_poll",
		slog.String("event", eventID),
		slog.Int("batch_actual", out.BatchActual),
		slog.Int("released", out.Released),
		slog.Int("remaining", out.Remaining),
		slog.Bool("complete", out.Complete),
	)
	return out, nil
}

// StatusOf reports release progress without touching the cursor. An event
// with no installed state is simply "not active".
func (m *Manager) StatusOf(eventID string) Status {
	s := m.slotFor(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st == nil {
		return Status{Active: false}
	}
	st := s.st
	out := Status{
		Active:     true,
		TotalTimes: len(st.order),
		Released:   len(st.released),
		Remaining:  len(st.order) - st.cursor,
		Complete:   st.cursor >= len(st.order),
	}
	started := st.startedAt
	out.StartedAt = &started
	if !st.lastPoll.IsZero() {
		last := st.lastPoll
		out.LastPolledAt = &last
	}
	return out
}
