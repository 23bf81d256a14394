// v2
// internal/storage/store.go
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/etkk55/enduro-backend/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const (
	prefixEvent      = "event/"
	prefixEventCode  = "eventcode/"
	prefixCompetitor = "competitor/"
	prefixStage      = "stage/"
	prefixTime       = "time/"
	prefixComm       = "comm/"
)

// Store is the transactional record store backing the whole service. Values
// are msgpack-encoded under per-entity key prefixes; ownership is expressed
// through key layout so an event delete is a prefix sweep.
type Store struct {
	db  *badger.DB
	log *slog.Logger

	// seqMu serializes the read-max-then-insert paths (event codes,
	// per-event race numbers, communication numbers).
	seqMu sync.Mutex
}

// Open opens (or creates) the Badger database under dir.
func Open(dir string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	log.Info("store_opened", slog.String("dir", dir))
	return &Store{db: db, log: log}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(v any) ([]byte, error) {
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return buf, nil
}

func (s *Store) set(key string, v any) error {
	buf, err := encode(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
}

func (s *Store) get(key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// listPrefix decodes every value under prefix into fresh T values.
func listPrefix[T any](s *Store, prefix string) ([]T, error) {
	var out []T
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) deletePrefix(txn *badger.Txn, prefix string) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()
	p := []byte(prefix)
	var keys [][]byte
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// CreateEvent persists a new event. The caller-assigned code must be unique
// across the whole store.
func (s *Store) CreateEvent(ev *models.Event) error {
	if ev.Code == "" || ev.Name == "" {
		return fmt.Errorf("%w: event code and name are required", ErrConflict)
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	var existing string
	if err := s.get(prefixEventCode+ev.Code, &existing); err == nil {
		return fmt.Errorf("%w: event code %q already in use", ErrConflict, ev.Code)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := s.set(prefixEvent+ev.ID, ev); err != nil {
		return err
	}
	if err := s.set(prefixEventCode+ev.Code, ev.ID); err != nil {
		return err
	}
	s.log.Info("event_created", slog.String("id", ev.ID), slog.String("code", ev.Code))
	return nil
}

// GetEvent looks an event up by identity.
func (s *Store) GetEvent(id string) (models.Event, error) {
	var ev models.Event
	if err := s.get(prefixEvent+id, &ev); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

// GetEventByCode resolves the caller-assigned code to the full event.
func (s *Store) GetEventByCode(code string) (models.Event, error) {
	var id string
	if err := s.get(prefixEventCode+code, &id); err != nil {
		return models.Event{}, err
	}
	return s.GetEvent(id)
}

// ListEvents returns every event, oldest first.
func (s *Store) ListEvents() ([]models.Event, error) {
	events, err := listPrefix[models.Event](s, prefixEvent)
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

// DeleteEvent removes the event and everything it owns: competitors,
// stages, and time records.
func (s *Store) DeleteEvent(id string) error {
	ev, err := s.GetEvent(id)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixEvent + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixEventCode + ev.Code)); err != nil {
			return err
		}
		for _, p := range []string{prefixCompetitor + id + "/", prefixStage + id + "/", prefixTime + id + "/"} {
			if err := s.deletePrefix(txn, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	s.log.Info("event_deleted", slog.String("id", id), slog.String("code", ev.Code))
	return nil
}

// CreateCompetitor enters a rider into an event. Race numbers are unique
// within the event.
func (s *Store) CreateCompetitor(c *models.Competitor) error {
	if _, err := s.GetEvent(c.EventID); err != nil {
		return err
	}
	if c.RaceNumber <= 0 {
		return fmt.Errorf("%w: race number must be positive", ErrConflict)
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	existing, err := s.CompetitorsOf(c.EventID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.RaceNumber == c.RaceNumber {
			return fmt.Errorf("%w: race number %d already taken", ErrConflict, c.RaceNumber)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return s.set(prefixCompetitor+c.EventID+"/"+c.ID, c)
}

// GetCompetitor looks a competitor up within an event.
func (s *Store) GetCompetitor(eventID, id string) (models.Competitor, error) {
	var c models.Competitor
	if err := s.get(prefixCompetitor+eventID+"/"+id, &c); err != nil {
		return models.Competitor{}, err
	}
	return c, nil
}

// CompetitorsOf returns the event roster ordered by race number.
func (s *Store) CompetitorsOf(eventID string) ([]models.Competitor, error) {
	list, err := listPrefix[models.Competitor](s, prefixCompetitor+eventID+"/")
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RaceNumber < list[j].RaceNumber })
	return list, nil
}

// CreateStage adds a timed stage to an event.
func (s *Store) CreateStage(st *models.Stage) error {
	if _, err := s.GetEvent(st.EventID); err != nil {
		return err
	}
	if st.Ordinal <= 0 {
		return fmt.Errorf("%w: stage ordinal must be positive", ErrConflict)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = models.StageNotStarted
	}
	return s.set(prefixStage+st.EventID+"/"+st.ID, st)
}

// GetStage looks a stage up within an event.
func (s *Store) GetStage(eventID, id string) (models.Stage, error) {
	var st models.Stage
	if err := s.get(prefixStage+eventID+"/"+id, &st); err != nil {
		return models.Stage{}, err
	}
	return st, nil
}

// StagesOf returns the event's stages in ascending ordinal order, the order
// every reconstruction pass iterates in.
func (s *Store) StagesOf(eventID string) ([]models.Stage, error) {
	list, err := listPrefix[models.Stage](s, prefixStage+eventID+"/")
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })
	return list, nil
}

// UpdateStageStatus flips the advisory lifecycle marker on a stage.
func (s *Store) UpdateStageStatus(eventID, stageID string, status models.StageStatus) error {
	var st models.Stage
	key := prefixStage + eventID + "/" + stageID
	if err := s.get(key, &st); err != nil {
		return err
	}
	st.Status = status
	return s.set(key, &st)
}

// UpsertTime writes the time record for a (competitor, stage) pair,
// overwriting the elapsed time if a record already exists. Both sides of
// the pair must belong to the event.
func (s *Store) UpsertTime(eventID string, rec models.TimeRecord) error {
	var c models.Competitor
	if err := s.get(prefixCompetitor+eventID+"/"+rec.CompetitorID, &c); err != nil {
		return fmt.Errorf("competitor %s: %w", rec.CompetitorID, err)
	}
	var st models.Stage
	if err := s.get(prefixStage+eventID+"/"+rec.StageID, &st); err != nil {
		return fmt.Errorf("stage %s: %w", rec.StageID, err)
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	return s.set(prefixTime+eventID+"/"+rec.CompetitorID+"/"+rec.StageID, &rec)
}

// TimesFor returns every time record of the event.
func (s *Store) TimesFor(eventID string) ([]models.TimeRecord, error) {
	return listPrefix[models.TimeRecord](s, prefixTime+eventID+"/")
}

// ReleasedTimesFor joins the event's time records with competitor and stage
// display data, ordered by stage ordinal then elapsed time. This is the raw
// feed the live simulator shuffles.
func (s *Store) ReleasedTimesFor(eventID string) ([]models.ReleasedTime, error) {
	competitors, err := s.CompetitorsOf(eventID)
	if err != nil {
		return nil, err
	}
	stages, err := s.StagesOf(eventID)
	if err != nil {
		return nil, err
	}
	times, err := s.TimesFor(eventID)
	if err != nil {
		return nil, err
	}

	compByID := make(map[string]models.Competitor, len(competitors))
	for _, c := range competitors {
		compByID[c.ID] = c
	}
	stageByID := make(map[string]models.Stage, len(stages))
	for _, st := range stages {
		stageByID[st.ID] = st
	}

	out := make([]models.ReleasedTime, 0, len(times))
	for _, rec := range times {
		c, okC := compByID[rec.CompetitorID]
		st, okS := stageByID[rec.StageID]
		if !okC || !okS {
			// Orphaned record, likely mid-delete. Skip rather than fail the feed.
			continue
		}
		out = append(out, models.ReleasedTime{
			CompetitorID: c.ID,
			RaceNumber:   c.RaceNumber,
			FirstName:    c.FirstName,
			LastName:     c.LastName,
			Class:        c.Class,
			StageID:      st.ID,
			StageOrdinal: st.Ordinal,
			StageName:    st.Name,
			ElapsedSec:   models.SecondsFromCentis(rec.ElapsedCs),
			PenaltySec:   models.SecondsFromCentis(rec.PenaltyCs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StageOrdinal != out[j].StageOrdinal {
			return out[i].StageOrdinal < out[j].StageOrdinal
		}
		return out[i].ElapsedSec < out[j].ElapsedSec
	})
	return out, nil
}

// CreateCommunication appends a numbered bulletin for an event code. Numbers
// run sequentially per code starting at 1.
func (s *Store) CreateCommunication(eventCode, text string) (models.Communication, error) {
	if _, err := s.GetEventByCode(eventCode); err != nil {
		return models.Communication{}, err
	}
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	existing, err := listPrefix[models.Communication](s, prefixComm+eventCode+"/")
	if err != nil {
		return models.Communication{}, err
	}
	next := 1
	for _, c := range existing {
		if c.Number >= next {
			next = c.Number + 1
		}
	}
	comm := models.Communication{
		ID:        uuid.NewString(),
		EventCode: eventCode,
		Number:    next,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("%s%s/%08d", prefixComm, eventCode, next)
	if err := s.set(key, &comm); err != nil {
		return models.Communication{}, err
	}
	s.log.Info("communication_created", slog.String("code", eventCode), slog.Int("number", next))
	return comm, nil
}

// ListCommunications returns the bulletins for a code, newest number first.
func (s *Store) ListCommunications(eventCode string) ([]models.Communication, error) {
	list, err := listPrefix[models.Communication](s, prefixComm+eventCode+"/")
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number > list[j].Number })
	return list, nil
}
