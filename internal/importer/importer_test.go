// v2
// internal/importer/importer_test.go
package importer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/etkk55/enduro-backend/internal/circuitbreaker"
	"github.com/etkk55/enduro-backend/internal/models"
	"github.com/etkk55/enduro-backend/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Store, enough to observe what the importer writes.
type memStore struct {
	event       models.Event
	competitors []models.Competitor
	stages      []models.Stage
	times       map[string]models.TimeRecord
	nextID      int
}

func newMemStore(code string, stageOrdinals ...int) *memStore {
	m := &memStore{
		event: models.Event{ID: "ev", Code: code, Name: "Test Rally"},
		times: map[string]models.TimeRecord{},
	}
	for i, o := range stageOrdinals {
		m.stages = append(m.stages, models.Stage{ID: "st" + strings.Repeat("i", i+1), EventID: "ev", Ordinal: o})
	}
	return m
}

func (m *memStore) GetEvent(id string) (models.Event, error) {
	if id != m.event.ID {
		return models.Event{}, storage.ErrNotFound
	}
	return m.event, nil
}

func (m *memStore) CompetitorsOf(eventID string) ([]models.Competitor, error) {
	return append([]models.Competitor(nil), m.competitors...), nil
}

func (m *memStore) StagesOf(eventID string) ([]models.Stage, error) {
	return append([]models.Stage(nil), m.stages...), nil
}

func (m *memStore) CreateCompetitor(c *models.Competitor) error {
	for _, other := range m.competitors {
		if other.RaceNumber == c.RaceNumber {
			return storage.ErrConflict
		}
	}
	m.nextID++
	c.ID = "c" + strings.Repeat("x", m.nextID)
	m.competitors = append(m.competitors, *c)
	return nil
}

func (m *memStore) UpsertTime(eventID string, rec models.TimeRecord) error {
	m.times[rec.CompetitorID+"/"+rec.StageID] = rec
	return nil
}

// federationServer serves fixed entrylist/timelist documents.
func federationServer(t *testing.T, roster, times string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/entrylist/"):
			io.WriteString(w, roster)
		case strings.HasPrefix(r.URL.Path, "/timelist/"):
			io.WriteString(w, times)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newImporter(srv *httptest.Server, store Store) *Importer {
	log := quietLogger()
	breaker := circuitbreaker.New("test", circuitbreaker.Config{}, log)
	return New(NewClient(srv.URL, breaker, log), store, log)
}

func TestImportEventMergesRosterAndTimes(t *testing.T) {
	roster := `[
		{"number": 1, "firstName": "Anna", "lastName": "Rossi", "class": "E1"},
		{"number": 2, "firstName": "Bruno", "lastName": "Bianchi", "class": "E2", "machine": "KTM 250", "team": "MC Prova"}
	]`
	times := `[
		{"number": 1, "stageOrdinal": 1, "elapsedSeconds": 95.5, "penaltySeconds": 10},
		{"number": 2, "stageOrdinal": 1, "elapsedSeconds": 98.2},
		{"number": 99, "stageOrdinal": 1, "elapsedSeconds": 90},
		{"number": 1, "stageOrdinal": 7, "elapsedSeconds": 90}
	]`
	srv := federationServer(t, roster, times)
	store := newMemStore("RLY", 1)
	im := newImporter(srv, store)

	res, err := im.ImportEvent(context.Background(), "ev")
	if err != nil {
		t.Fatalf("ImportEvent: %v", err)
	}
	if res.CompetitorsAdded != 2 {
		t.Errorf("competitors added = %d, want 2", res.CompetitorsAdded)
	}
	if res.TimesImported != 2 {
		t.Errorf("times imported = %d, want 2", res.TimesImported)
	}
	// Unknown race number and unknown stage ordinal are skipped, not fatal.
	if res.TimesSkipped != 2 {
		t.Errorf("times skipped = %d, want 2", res.TimesSkipped)
	}

	if len(store.times) != 2 {
		t.Fatalf("stored %d time records", len(store.times))
	}
	for _, rec := range store.times {
		if rec.ElapsedCs == 9550 {
			if rec.PenaltyCs != 1000 {
				t.Errorf("penalty = %d cs, want 1000", rec.PenaltyCs)
			}
			return
		}
	}
	t.Error("95.5s record not converted to 9550 cs")
}

func TestImportEventIdempotent(t *testing.T) {
	roster := `[{"number": 1, "firstName": "Anna", "lastName": "Rossi"}]`
	times := `[{"number": 1, "stageOrdinal": 1, "elapsedSeconds": 100}]`
	srv := federationServer(t, roster, times)
	store := newMemStore("RLY", 1)
	im := newImporter(srv, store)

	if _, err := im.ImportEvent(context.Background(), "ev"); err != nil {
		t.Fatalf("first import: %v", err)
	}
	res, err := im.ImportEvent(context.Background(), "ev")
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if res.CompetitorsAdded != 0 {
		t.Errorf("re-import added %d competitors, want 0", res.CompetitorsAdded)
	}
	if len(store.competitors) != 1 {
		t.Errorf("roster has %d entries after re-import", len(store.competitors))
	}
	if len(store.times) != 1 {
		t.Errorf("%d time records after re-import, want 1 (upserted)", len(store.times))
	}
}

func TestImportRejectsInvalidPayload(t *testing.T) {
	// Negative race number fails schema validation before any write.
	roster := `[{"number": -1, "firstName": "Bad", "lastName": "Entry"}]`
	srv := federationServer(t, roster, "[]")
	store := newMemStore("RLY", 1)
	im := newImporter(srv, store)

	if _, err := im.ImportEvent(context.Background(), "ev"); err == nil {
		t.Fatal("invalid roster accepted")
	}
	if len(store.competitors) != 0 {
		t.Error("rejected payload still wrote competitors")
	}
}

func TestImportUnknownEvent(t *testing.T) {
	srv := federationServer(t, "[]", "[]")
	im := newImporter(srv, newMemStore("RLY", 1))

	if _, err := im.ImportEvent(context.Background(), "missing"); err == nil {
		t.Fatal("unknown event accepted")
	}
}

func TestFetchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	im := newImporter(srv, newMemStore("RLY", 1))

	if _, err := im.ImportEvent(context.Background(), "ev"); err == nil {
		t.Fatal("upstream 500 accepted")
	}
}

func TestValidateTimesSchema(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		ok      bool
	}{
		{"valid", `[{"number": 1, "stageOrdinal": 1, "elapsedSeconds": 10.5}]`, true},
		{"empty list", `[]`, true},
		{"zero elapsed", `[{"number": 1, "stageOrdinal": 1, "elapsedSeconds": 0}]`, false},
		{"missing ordinal", `[{"number": 1, "elapsedSeconds": 10}]`, false},
		{"extra field", `[{"number": 1, "stageOrdinal": 1, "elapsedSeconds": 10, "bonus": true}]`, false},
		{"not an array", `{"number": 1}`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateTimes([]byte(c.payload))
			if c.ok && err != nil {
				t.Errorf("rejected valid payload: %v", err)
			}
			if !c.ok && err == nil {
				t.Error("accepted invalid payload")
			}
		})
	}
}
