package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
)

func (s *Server) HandleUpsertSchedule(w http.ResponseWriter, r *http.Request) {
	var sched model.RecurringSchedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid schedule body"})
		return
	}
	defer r.Body.Close()
	id, err := s.scheduleService.Upsert(sched)
	if err != nil {
		logger.Error("error saving schedule", zap.String("template", sched.TemplateId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sched, err := s.scheduleService.Get(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sched)
}

func (s *Server) HandleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.scheduleService.Cancel(id); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
