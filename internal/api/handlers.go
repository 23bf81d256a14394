// v3
// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/etkk55/enduro-backend/internal/config"
	"github.com/etkk55/enduro-backend/internal/importer"
	"github.com/etkk55/enduro-backend/internal/metrics"
	"github.com/etkk55/enduro-backend/internal/models"
	"github.com/etkk55/enduro-backend/internal/simulator"
	"github.com/etkk55/enduro-backend/internal/standings"
	"github.com/etkk55/enduro-backend/internal/storage"
	"github.com/etkk55/enduro-backend/internal/stream"
)

// Handlers bundles the dependencies every endpoint needs. The simulator
// manager is injected here, never reached through package scope.
type Handlers struct {
	Cfg      config.Config
	Log      *slog.Logger
	Store    *storage.Store
	Sim      *simulator.Manager
	Importer *importer.Importer // nil when no federation base URL is configured
	Stream   *stream.Publisher
}

// Health is a lightweight liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type createEventRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateEvent registers a new rally.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev := models.Event{Code: req.Code, Name: req.Name, Description: req.Description}
	if err := h.Store.CreateEvent(&ev); err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, ev)
}

// ListEvents returns every event.
func (h *Handlers) ListEvents(w http.ResponseWriter, _ *http.Request) {
	events, err := h.Store.ListEvents()
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, events)
}

// GetEvent returns one event by id.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Store.GetEvent(mux.Vars(r)["id"])
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, ev)
}

// DeleteEvent removes an event and everything it owns.
func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteEvent(mux.Vars(r)["id"]); err != nil {
		h.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createCompetitorRequest struct {
	Number    int    `json:"number"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Class     string `json:"class"`
	Machine   string `json:"machine"`
	Team      string `json:"team"`
}

// CreateCompetitor enters a rider into the event.
func (h *Handlers) CreateCompetitor(w http.ResponseWriter, r *http.Request) {
	var req createCompetitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c := models.Competitor{
		EventID:    mux.Vars(r)["id"],
		RaceNumber: req.Number,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Class:      req.Class,
		Machine:    req.Machine,
		Team:       req.Team,
	}
	if err := h.Store.CreateCompetitor(&c); err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

// ListCompetitors returns the roster ordered by race number.
func (h *Handlers) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	list, err := h.Store.CompetitorsOf(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

type createStageRequest struct {
	Ordinal int    `json:"ordinal"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// CreateStage adds a timed stage to the event.
func (h *Handlers) CreateStage(w http.ResponseWriter, r *http.Request) {
	var req createStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st := models.Stage{
		EventID: mux.Vars(r)["id"],
		Ordinal: req.Ordinal,
		Name:    req.Name,
		Status:  models.StageStatus(req.Status),
	}
	if err := h.Store.CreateStage(&st); err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, st)
}

type updateStageStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStageStatus flips the advisory lifecycle marker on a stage.
func (h *Handlers) UpdateStageStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req updateStageStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := models.StageStatus(req.Status)
	switch status {
	case models.StageNotStarted, models.StageInProgress, models.StageCompleted:
	default:
		h.respondError(w, http.StatusBadRequest, "unknown stage status")
		return
	}
	if err := h.Store.UpdateStageStatus(vars["id"], vars["stageId"], status); err != nil {
		h.respondStoreError(w, err)
		return
	}
	st, err := h.Store.GetStage(vars["id"], vars["stageId"])
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// ListStages returns the event's stages in running order.
func (h *Handlers) ListStages(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	list, err := h.Store.StagesOf(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

type upsertTimeRequest struct {
	CompetitorID   string  `json:"competitorId"`
	StageID        string  `json:"stageId"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	PenaltySeconds float64 `json:"penaltySeconds"`
}

// UpsertTime records (or overwrites) the elapsed time for a
// (competitor, stage) pair.
func (h *Handlers) UpsertTime(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	var req upsertTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ElapsedSeconds <= 0 {
		h.respondError(w, http.StatusBadRequest, "elapsedSeconds must be positive")
		return
	}
	if req.PenaltySeconds < 0 {
		h.respondError(w, http.StatusBadRequest, "penaltySeconds cannot be negative")
		return
	}
	rec := models.TimeRecord{
		CompetitorID: req.CompetitorID,
		StageID:      req.StageID,
		ElapsedCs:    models.CentisFromSeconds(req.ElapsedSeconds),
		PenaltyCs:    models.CentisFromSeconds(req.PenaltySeconds),
	}
	if err := h.Store.UpsertTime(eventID, rec); err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.publishTime(eventID, rec)
	h.respondJSON(w, http.StatusOK, rec)
}

// publishTime pushes a manually recorded time onto the live stream.
func (h *Handlers) publishTime(eventID string, rec models.TimeRecord) {
	if h.Stream == nil {
		return
	}
	c, errC := h.Store.GetCompetitor(eventID, rec.CompetitorID)
	st, errS := h.Store.GetStage(eventID, rec.StageID)
	if errC != nil || errS != nil {
		return
	}
	h.Stream.PublishTimes(eventID, "manual", []models.ReleasedTime{{
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
	}})
}

// ListTimes returns every time record of the event.
func (h *Handlers) ListTimes(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	times, err := h.Store.TimesFor(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, times)
}

// Replay assembles the stage-by-stage leaderboard timeline for the event.
func (h *Handlers) Replay(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	ev, err := h.Store.GetEvent(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	competitors, err := h.Store.CompetitorsOf(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	stages, err := h.Store.StagesOf(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	times, err := h.Store.TimesFor(eventID)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	start := time.Now()
	payload := standings.BuildReplay(ev, competitors, stages, times, standings.Options{
		StageRankIncludesPenalty: h.Cfg.StageRankIncludesPenalty,
	})
	metrics.ObserveReplayBuild(time.Since(start))

	h.Log.Info("replay_built",
		slog.String("event", eventID),
		slog.Int("stages", len(stages)),
		slog.Int("competitors", len(competitors)),
	)
	h.respondJSON(w, http.StatusOK, payload)
}

// SimulateReset installs a fresh shuffled simulation for the event.
func (h *Handlers) SimulateReset(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	res, err := h.Sim.Reset(eventID)
	if err != nil {
		if errors.Is(err, simulator.ErrNoTimes) {
			h.respondError(w, http.StatusNotFound, "no recorded times for this event")
			return
		}
		h.respondStoreError(w, err)
		return
	}
	metrics.IncSimulatorReset()
	h.respondJSON(w, http.StatusOK, res)
}

// SimulatePoll releases the next randomized batch of times.
func (h *Handlers) SimulatePoll(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	batch := h.Cfg.SimulatorBatchSize
	if raw := r.URL.Query().Get("batch"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "batch must be a positive integer")
			return
		}
		batch = n
	}
	res, err := h.Sim.Poll(eventID, batch)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	metrics.IncSimulatorPoll(res.Complete)
	if h.Stream != nil && len(res.NewTimes) > 0 {
		h.Stream.PublishTimes(eventID, "simulator", res.NewTimes)
	}
	h.respondJSON(w, http.StatusOK, res)
}

// SimulateStatus reports release progress without advancing the cursor.
func (h *Handlers) SimulateStatus(w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["id"]
	if _, err := h.Store.GetEvent(eventID); err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.Sim.StatusOf(eventID))
}

// Import pulls the federation roster and times for the event.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		h.respondError(w, http.StatusServiceUnavailable, "federation import is not configured")
		return
	}
	eventID := mux.Vars(r)["id"]
	res, err := h.Importer.ImportEvent(r.Context(), eventID)
	if err != nil {
		metrics.IncImportRun(false)
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "event not found")
			return
		}
		h.respondError(w, http.StatusBadGateway, fmt.Sprintf("import failed: %v", err))
		return
	}
	metrics.IncImportRun(true)
	h.respondJSON(w, http.StatusOK, res)
}

type createCommunicationRequest struct {
	EventCode string `json:"eventCode"`
	Text      string `json:"text"`
}

// CreateCommunication appends a numbered bulletin for an event code.
func (h *Handlers) CreateCommunication(w http.ResponseWriter, r *http.Request) {
	var req createCommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.EventCode == "" || req.Text == "" {
		h.respondError(w, http.StatusBadRequest, "eventCode and text are required")
		return
	}
	comm, err := h.Store.CreateCommunication(req.EventCode, req.Text)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, comm)
}

// ListCommunications returns the bulletins for an event code, newest first.
func (h *Handlers) ListCommunications(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("eventCode")
	if code == "" {
		h.respondError(w, http.StatusBadRequest, "eventCode query parameter is required")
		return
	}
	list, err := h.Store.ListCommunications(code)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Log.Error("response_encode_failed", slog.Any("err", err))
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, code int, msg string) {
	h.Log.Warn("http_error", slog.Int("code", code), slog.String("msg", msg))
	h.respondJSON(w, code, map[string]string{"error": msg})
}

func (h *Handlers) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
