// v2
// internal/standings/snapshot.go
package standings

import (
	"fmt"

	"github.com/etkk55/enduro-backend/internal/models"
)

// Payload is the full replay document: event metadata, roster and stage
// list carried once, and one leaderboard snapshot per stage. Given the same
// stored data the payload is deterministic.
type Payload struct {
	EventName   string          `json:"eventName"`
	Stages      []StageRef      `json:"stages"`
	Competitors []CompetitorRef `json:"competitors"`
	Snapshots   []Snapshot      `json:"snapshots"`
}

// StageRef is the once-only stage listing at the top of the payload.
type StageRef struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
}

// CompetitorRef is the once-only roster entry at the top of the payload.
type CompetitorRef struct {
	ID        string `json:"id"`
	Number    int    `json:"number"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Class     string `json:"class,omitempty"`
}

// Snapshot is the leaderboard after one stage: the active block in rank
// order followed by the retired block, positions continuing numerically.
type Snapshot struct {
	Sequence int    `json:"sequence"`
	Label    string `json:"label"`
	Rows     []Row  `json:"rows"`
}

// Row is one leaderboard line. StageResults always spans the full event
// timeline; cells beyond the snapshot's stage are explicit nulls so a
// client can render a fixed-width table from any single snapshot.
type Row struct {
	Position     int     `json:"position"`
	CompetitorID string  `json:"competitorId"`
	Number       int     `json:"number"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Class        string  `json:"class,omitempty"`
	Status       string  `json:"status"`
	Total        string  `json:"total"`
	StageResults []*Cell `json:"stageResults"`
}

// Cell carries the per-stage figures for one competitor at one stage.
// Gap is null when the competitor held no cumulative rank at that stage.
type Cell struct {
	Gap       *string `json:"gap"`
	RankDelta *int    `json:"rankDelta"`
	StageRank *int    `json:"stageRank"`
}

const (
	statusActive  = "active"
	statusRetired = "retired"
)

// BuildReplay assembles the replay payload for an event. Empty rosters or
// stage sets produce an empty snapshot list, not an error.
func BuildReplay(event models.Event, competitors []models.Competitor, stages []models.Stage, times []models.TimeRecord, opts Options) Payload {
	t := Reconstruct(competitors, stages, times, opts)

	p := Payload{
		EventName:   event.Name,
		Stages:      make([]StageRef, 0, len(stages)),
		Competitors: make([]CompetitorRef, 0, len(competitors)),
		Snapshots:   make([]Snapshot, 0, len(stages)),
	}
	for _, st := range stages {
		p.Stages = append(p.Stages, StageRef{Ordinal: st.Ordinal, Name: st.Name})
	}
	compByID := make(map[string]models.Competitor, len(competitors))
	for _, c := range competitors {
		compByID[c.ID] = c
		p.Competitors = append(p.Competitors, CompetitorRef{
			ID: c.ID, Number: c.RaceNumber, FirstName: c.FirstName, LastName: c.LastName, Class: c.Class,
		})
	}
	if len(competitors) == 0 || len(stages) == 0 {
		return p
	}

	for i, st := range stages {
		snap := Snapshot{
			Sequence: i + 1,
			Label:    fmt.Sprintf("After %s", st.Name),
		}
		position := 0

		for _, id := range t.Active(i) {
			position++
			e := t.Entry(id, i)
			snap.Rows = append(snap.Rows, Row{
				Position:     position,
				CompetitorID: id,
				Number:       compByID[id].RaceNumber,
				FirstName:    compByID[id].FirstName,
				LastName:     compByID[id].LastName,
				Class:        compByID[id].Class,
				Status:       statusActive,
				Total:        FormatTotal(e.CumulativeCs),
				StageResults: t.stageCells(id, i, len(stages)),
			})
		}

		// Retired block continues numerically after the active block.
		for _, id := range t.Retired(i) {
			position++
			e := t.Entry(id, i)
			snap.Rows = append(snap.Rows, Row{
				Position:     position,
				CompetitorID: id,
				Number:       compByID[id].RaceNumber,
				FirstName:    compByID[id].FirstName,
				LastName:     compByID[id].LastName,
				Class:        compByID[id].Class,
				Status:       statusRetired,
				Total:        FormatRetired(e.CompletedCount, i+1),
				StageResults: t.stageCells(id, i, len(stages)),
			})
		}

		p.Snapshots = append(p.Snapshots, snap)
	}
	return p
}

// stageCells builds the fixed-width per-stage cell slice for a competitor
// in the snapshot at stage index upTo. Cells past upTo stay nil.
func (t *Table) stageCells(competitorID string, upTo, total int) []*Cell {
	cells := make([]*Cell, total)
	for j := 0; j <= upTo; j++ {
		e := t.Entry(competitorID, j)
		cell := &Cell{}
		if e.CumulativeRank > 0 {
			gap := FormatGap(e.GapCs, e.CumulativeRank == 1)
			cell.Gap = &gap
			delta := e.RankDelta
			cell.RankDelta = &delta
		}
		if e.StageRank > 0 {
			rank := e.StageRank
			cell.StageRank = &rank
		}
		cells[j] = cell
	}
	return cells
}
