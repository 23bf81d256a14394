// v2
// internal/importer/importer.go
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/etkk55/enduro-backend/internal/models"
	"github.com/etkk55/enduro-backend/internal/storage"
)

// Store is the subset of the record store the importer writes through.
type Store interface {
	GetEvent(id string) (models.Event, error)
	CompetitorsOf(eventID string) ([]models.Competitor, error)
	StagesOf(eventID string) ([]models.Stage, error)
	CreateCompetitor(c *models.Competitor) error
	UpsertTime(eventID string, rec models.TimeRecord) error
}

// Result summarizes one import run.
type Result struct {
	CompetitorsAdded int `json:"competitorsAdded"`
	TimesImported    int `json:"timesImported"`
	TimesSkipped     int `json:"timesSkipped"`
}

// Importer drives a full roster-and-times import for one event.
type Importer struct {
	client *Client
	store  Store
	log    *slog.Logger
}

// New wires an importer over a federation client and the store.
func New(client *Client, store Store, log *slog.Logger) *Importer {
	return &Importer{client: client, store: store, log: log.With(slog.String("component", "federation_importer"))}
}

// ImportEvent pulls the federation roster and time list for the event's
// code and merges them into the store. Competitors already present (by
// race number) are kept as-is; time records are upserted, so a re-import
// overwrites elapsed times instead of duplicating pairs. Time entries that
// reference an unknown race number or stage ordinal are counted and
// skipped, not fatal.
func (im *Importer) ImportEvent(ctx context.Context, eventID string) (Result, error) {
	var res Result

	ev, err := im.store.GetEvent(eventID)
	if err != nil {
		return res, err
	}

	roster, err := im.client.FetchRoster(ctx, ev.Code)
	if err != nil {
		return res, fmt.Errorf("fetch roster: %w", err)
	}
	existing, err := im.store.CompetitorsOf(eventID)
	if err != nil {
		return res, err
	}
	byNumber := make(map[int]models.Competitor, len(existing))
	for _, c := range existing {
		byNumber[c.RaceNumber] = c
	}
	for _, entry := range roster {
		if _, ok := byNumber[entry.Number]; ok {
			continue
		}
		c := models.Competitor{
			EventID:    eventID,
			RaceNumber: entry.Number,
			FirstName:  entry.FirstName,
			LastName:   entry.LastName,
			Class:      entry.Class,
			Machine:    entry.Machine,
			Team:       entry.Team,
		}
		if err := im.store.CreateCompetitor(&c); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return res, fmt.Errorf("create competitor %d: %w", entry.Number, err)
		}
		byNumber[entry.Number] = c
		res.CompetitorsAdded++
	}

	times, err := im.client.FetchTimes(ctx, ev.Code)
	if err != nil {
		return res, fmt.Errorf("fetch times: %w", err)
	}
	stages, err := im.store.StagesOf(eventID)
	if err != nil {
		return res, err
	}
	stageByOrdinal := make(map[int]models.Stage, len(stages))
	for _, st := range stages {
		stageByOrdinal[st.Ordinal] = st
	}
	for _, entry := range times {
		comp, okC := byNumber[entry.Number]
		stage, okS := stageByOrdinal[entry.StageOrdinal]
		if !okC || !okS {
			res.TimesSkipped++
			im.log.Warn("time_entry_skipped",
				slog.Int("number", entry.Number),
				slog.Int("stage_ordinal", entry.StageOrdinal),
				slog.Bool("known_competitor", okC),
				slog.Bool("known_stage", okS),
			)
			continue
		}
		rec := models.TimeRecord{
			CompetitorID: comp.ID,
			StageID:      stage.ID,
			ElapsedCs:    models.CentisFromSeconds(entry.ElapsedSeconds),
			PenaltyCs:    models.CentisFromSeconds(entry.PenaltySeconds),
		}
		if err := im.store.UpsertTime(eventID, rec); err != nil {
			return res, fmt.Errorf("upsert time for %d/ss%d: %w", entry.Number, entry.StageOrdinal, err)
		}
		res.TimesImported++
	}

	im.log.Info("import_complete",
		slog.String("event", eventID),
		slog.String("code", ev.Code),
		slog.Int("competitors_added", res.CompetitorsAdded),
		slog.Int("times_imported", res.TimesImported),
		slog.Int("times_skipped", res.TimesSkipped),
	)
	return res, nil
}
