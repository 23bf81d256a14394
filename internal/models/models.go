// v1
// internal/models/models.go
package models

import (
	"math"
	"time"
)

// StageStatus is the advisory lifecycle marker carried by a stage. The
// standings pipeline never consults it; it exists for timing crews and
// client UIs.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// Event is one rally. It owns its competitors, stages and time records;
// deleting an event removes all of them.
type Event struct {
	ID          string    `json:"id" msgpack:"id"`
	Code        string    `json:"code" msgpack:"code"`
	Name        string    `json:"name" msgpack:"name"`
	Description string    `json:"description,omitempty" msgpack:"description"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"created_at"`
}

// Competitor is a rider entered in exactly one event. RaceNumber is
// caller-assigned and unique within the event, not necessarily contiguous.
type Competitor struct {
	ID         string    `json:"id" msgpack:"id"`
	EventID    string    `json:"eventId" msgpack:"event_id"`
	RaceNumber int       `json:"number" msgpack:"race_number"`
	FirstName  string    `json:"firstName" msgpack:"first_name"`
	LastName   string    `json:"lastName" msgpack:"last_name"`
	Class      string    `json:"class,omitempty" msgpack:"class"`
	Machine    string    `json:"machine,omitempty" msgpack:"machine"`
	Team       string    `json:"team,omitempty" msgpack:"team"`
	CreatedAt  time.Time `json:"createdAt" msgpack:"created_at"`
}

// Stage is one timed special stage. Ordinal is the position in running
// order; ordinals may be sparse because untimed liaison legs sit between
// timed stages. All cumulative math depends on ascending-ordinal order.
type Stage struct {
	ID      string      `json:"id" msgpack:"id"`
	EventID string      `json:"eventId" msgpack:"event_id"`
	Ordinal int         `json:"ordinal" msgpack:"ordinal"`
	Name    string      `json:"name" msgpack:"name"`
	Status  StageStatus `json:"status" msgpack:"status"`
}

// TimeRecord holds one (competitor, stage) elapsed time. At most one record
// exists per pair; re-import overwrites the elapsed time. Times are stored
// as fixed-point centiseconds to keep cumulative sums exact.
type TimeRecord struct {
	CompetitorID string    `json:"competitorId" msgpack:"competitor_id"`
	StageID      string    `json:"stageId" msgpack:"stage_id"`
	ElapsedCs    int64     `json:"elapsedCs" msgpack:"elapsed_cs"`
	PenaltyCs    int64     `json:"penaltyCs" msgpack:"penalty_cs"`
	RecordedAt   time.Time `json:"recordedAt" msgpack:"recorded_at"`
}

// TotalCs is the stage contribution to a cumulative total.
func (t TimeRecord) TotalCs() int64 {
	return t.ElapsedCs + t.PenaltyCs
}

// ReleasedTime is a time record joined with competitor and stage display
// data, the unit the live simulator shuffles and releases.
type ReleasedTime struct {
	CompetitorID string  `json:"competitorId" msgpack:"competitor_id"`
	RaceNumber   int     `json:"number" msgpack:"race_number"`
	FirstName    string  `json:"firstName" msgpack:"first_name"`
	LastName     string  `json:"lastName" msgpack:"last_name"`
	Class        string  `json:"class,omitempty" msgpack:"class"`
	StageID      string  `json:"stageId" msgpack:"stage_id"`
	StageOrdinal int     `json:"stageOrdinal" msgpack:"stage_ordinal"`
	StageName    string  `json:"stageName" msgpack:"stage_name"`
	ElapsedSec   float64 `json:"elapsedSeconds" msgpack:"elapsed_sec"`
	PenaltySec   float64 `json:"penaltySeconds" msgpack:"penalty_sec"`
}

// Communication is a numbered race bulletin tied to an event code. Numbers
// are assigned sequentially per code at creation time.
type Communication struct {
	ID        string    `json:"id" msgpack:"id"`
	EventCode string    `json:"eventCode" msgpack:"event_code"`
	Number    int       `json:"number" msgpack:"number"`
	Text      string    `json:"text" msgpack:"text"`
	CreatedAt time.Time `json:"createdAt" msgpack:"created_at"`
}

// CentisFromSeconds converts a fractional seconds value to fixed-point
// centiseconds, rounding to the nearest hundredth.
func CentisFromSeconds(s float64) int64 {
	return int64(math.Round(s * 100))
}

// SecondsFromCentis is the inverse conversion, used on serialization
// boundaries that speak in seconds.
func SecondsFromCentis(cs int64) float64 {
	return float64(cs) / 100
}
