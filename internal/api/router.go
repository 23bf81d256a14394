// v2
// internal/api/router.go
package api

import (
	"github.com/gorilla/mux"

	"github.com/etkk55/enduro-backend/internal/metrics"
)

// NewRouter wires every HTTP route exposed by the timing service.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/events", h.CreateEvent).Methods("POST")
	api.HandleFunc("/events", h.ListEvents).Methods("GET")
	api.HandleFunc("/events/{id}", h.GetEvent).Methods("GET")
	api.HandleFunc("/events/{id}", h.DeleteEvent).Methods("DELETE")

	api.HandleFunc("/events/{id}/competitors", h.CreateCompetitor).Methods("POST")
	api.HandleFunc("/events/{id}/competitors", h.ListCompetitors).Methods("GET")

	api.HandleFunc("/events/{id}/stages", h.CreateStage).Methods("POST")
	api.HandleFunc("/events/{id}/stages", h.ListStages).Methods("GET")
	api.HandleFunc("/events/{id}/stages/{stageId}", h.UpdateStageStatus).Methods("PATCH")

	api.HandleFunc("/events/{id}/times", h.UpsertTime).Methods("PUT")
	api.HandleFunc("/events/{id}/times", h.ListTimes).Methods("GET")

	api.HandleFunc("/events/{id}/replay", h.Replay).Methods("GET")

	api.HandleFunc("/events/{id}/simulate-reset", h.SimulateReset).Methods("POST")
	api.HandleFunc("/events/{id}/simulate-poll", h.SimulatePoll).Methods("GET")
	api.HandleFunc("/events/{id}/simulate-status", h.SimulateStatus).Methods("GET")

	api.HandleFunc("/events/{id}/import", h.Import).Methods("POST")

	api.HandleFunc("/communications", h.CreateCommunication).Methods("POST")
	api.HandleFunc("/communications", h.ListCommunications).Methods("GET")

	return r
}
