// v3
// internal/standings/standings.go

// Package standings reconstructs the stage-by-stage classification of an
// event from its sparse time matrix: cumulative totals, ranks, adjacent
// gaps, position deltas, and the active/retired partition at every stage.
package standings

import (
	"sort"

	"github.com/etkk55/enduro-backend/internal/models"
)

// Options carries the knobs the reconstruction honors. StageRankIncludesPenalty
// controls whether this-stage-only ranking orders by elapsed+penalty or by raw
// elapsed time; cumulative totals always include penalties.
type Options struct {
	StageRankIncludesPenalty bool
}

// Entry is the derived per-competitor, per-stage record. It is computed on
// demand and never persisted.
type Entry struct {
	CompetitorID string
	// Completed reports whether a time record exists for this stage.
	Completed bool
	// StageCs is this stage's elapsed time; meaningless when !Completed.
	StageCs int64
	// PenaltyCs is this stage's penalty; meaningless when !Completed.
	PenaltyCs int64
	// CumulativeCs sums elapsed+penalty over every completed stage so far.
	CumulativeCs int64
	// CompletedCount counts stages completed through this index.
	CompletedCount int
	// CumulativeRank is the 1-based rank among competitors with unbroken
	// completion history through this stage. Zero means unranked.
	CumulativeRank int
	// StageRank is the 1-based rank among competitors who completed this
	// stage, regardless of earlier history. Zero means no time here.
	StageRank int
	// GapCs is the cumulative gap to the immediately preceding ranked
	// competitor (adjacent-gap model); zero for the leader and for the
	// unranked.
	GapCs int64
	// RankDelta is previous cumulative rank minus current; positive means
	// positions gained. Zero at the first stage and for the unranked.
	RankDelta int
}

// Table holds the full reconstruction for one event. Rows are indexed by
// competitor id and run parallel to Stages.
type Table struct {
	Competitors []models.Competitor
	Stages      []models.Stage
	rows        map[string][]Entry
}

// Reconstruct runs the whole pipeline once over data pulled from the store.
// Stages must already be in ascending ordinal order and competitors in
// roster (race number) order; the store guarantees both. An event with no
// stages or no competitors yields an empty, valid table.
func Reconstruct(competitors []models.Competitor, stages []models.Stage, times []models.TimeRecord, opts Options) *Table {
	t := &Table{
		Competitors: competitors,
		Stages:      stages,
		rows:        make(map[string][]Entry, len(competitors)),
	}
	if len(competitors) == 0 || len(stages) == 0 {
		return t
	}

	type pair struct{ comp, stage string }
	recorded := make(map[pair]models.TimeRecord, len(times))
	for _, rec := range times {
		recorded[pair{rec.CompetitorID, rec.StageID}] = rec
	}

	numberOf := make(map[string]int, len(competitors))
	for _, c := range competitors {
		numberOf[c.ID] = c.RaceNumber
	}

	// Pass 1: per-competitor accumulation in stage order. A missing record
	// carries the cumulative total forward unchanged.
	for _, c := range competitors {
		row := make([]Entry, len(stages))
		var cumulative int64
		var done int
		for i, st := range stages {
			e := Entry{CompetitorID: c.ID}
			if rec, ok := recorded[pair{c.ID, st.ID}]; ok {
				e.Completed = true
				e.StageCs = rec.ElapsedCs
				e.PenaltyCs = rec.PenaltyCs
				cumulative += rec.TotalCs()
				done++
			}
			e.CumulativeCs = cumulative
			e.CompletedCount = done
			row[i] = e
		}
		t.rows[c.ID] = row
	}

	// Pass 2: per-stage rankings.
	for i := range stages {
		// Eligible cumulative set: unbroken completion history through i.
		// One missed earlier stage permanently excludes a competitor.
		eligible := make([]string, 0, len(competitors))
		for _, c := range competitors {
			row := t.rows[c.ID]
			ok := true
			for j := 0; j <= i; j++ {
				if !row[j].Completed {
					ok = false
					break
				}
			}
			if ok {
				eligible = append(eligible, c.ID)
			}
		}
		sort.SliceStable(eligible, func(a, b int) bool {
			ea, eb := t.rows[eligible[a]][i], t.rows[eligible[b]][i]
			if ea.CumulativeCs != eb.CumulativeCs {
				return ea.CumulativeCs < eb.CumulativeCs
			}
			return numberOf[eligible[a]] < numberOf[eligible[b]]
		})
		var prevCumulative int64
		for rank, id := range eligible {
			e := &t.rows[id][i]
			e.CumulativeRank = rank + 1
			if rank == 0 {
				e.GapCs = 0
			} else {
				e.GapCs = e.CumulativeCs - prevCumulative
			}
			prevCumulative = e.CumulativeCs
		}

		// This-stage set: everyone with a time here, prior history ignored.
		onStage := make([]string, 0, len(competitors))
		for _, c := range competitors {
			if t.rows[c.ID][i].Completed {
				onStage = append(onStage, c.ID)
			}
		}
		stageKey := func(id string) int64 {
			e := t.rows[id][i]
			if opts.StageRankIncludesPenalty {
				return e.StageCs + e.PenaltyCs
			}
			return e.StageCs
		}
		sort.SliceStable(onStage, func(a, b int) bool {
			ka, kb := stageKey(onStage[a]), stageKey(onStage[b])
			if ka != kb {
				return ka < kb
			}
			return numberOf[onStage[a]] < numberOf[onStage[b]]
		})
		for rank, id := range onStage {
			t.rows[id][i].StageRank = rank + 1
		}

		// Rank delta versus the previous stage's cumulative rank.
		if i > 0 {
			for _, c := range competitors {
				cur := &t.rows[c.ID][i]
				prev := t.rows[c.ID][i-1]
				if cur.CumulativeRank > 0 && prev.CumulativeRank > 0 {
					cur.RankDelta = prev.CumulativeRank - cur.CumulativeRank
				}
			}
		}
	}

	return t
}

// Entry returns the derived record for a competitor at a stage index. The
// zero Entry is returned for unknown competitors.
func (t *Table) Entry(competitorID string, stageIdx int) Entry {
	row, ok := t.rows[competitorID]
	if !ok || stageIdx < 0 || stageIdx >= len(row) {
		return Entry{}
	}
	return row[stageIdx]
}

// Active returns the eligible cumulative set at a stage index, in rank
// order. These are the competitors whose rank is defined.
func (t *Table) Active(stageIdx int) []string {
	type ranked struct {
		id   string
		rank int
	}
	out := make([]ranked, 0, len(t.Competitors))
	for _, c := range t.Competitors {
		if e := t.Entry(c.ID, stageIdx); e.CumulativeRank > 0 {
			out = append(out, ranked{c.ID, e.CumulativeRank})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rank < out[j].rank })
	ids := make([]string, len(out))
	for i, r := range out {
		ids[i] = r.id
	}
	return ids
}

// Retired returns, for a stage index, the competitors who completed at
// least one stage so far but hold no cumulative rank, ordered by
// completed-count descending (stable in roster order). Competitors with no
// times at all are excluded entirely.
func (t *Table) Retired(stageIdx int) []string {
	ids := make([]string, 0, len(t.Competitors))
	for _, c := range t.Competitors {
		e := t.Entry(c.ID, stageIdx)
		if e.CumulativeRank == 0 && e.CompletedCount > 0 {
			ids = append(ids, c.ID)
		}
	}
	sort.SliceStable(ids, func(a, b int) bool {
		return t.Entry(ids[a], stageIdx).CompletedCount > t.Entry(ids[b], stageIdx).CompletedCount
	})
	return ids
}
