package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
)

func (s *Server) HandleInstantiate(w http.ResponseWriter, r *http.Request) {
	var req model.InstantiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid instantiate body"})
		return
	}
	defer r.Body.Close()
	id, err := s.executorService.Instantiate(req)
	if err != nil {
		logger.Error("error instantiating template", zap.String("template", req.TemplateId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"assignmentId": id})
}

func (s *Server) HandleGetAssignment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.executorService.GetSnapshot(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleReportCompletion(w http.ResponseWriter, r *http.Request) {
	var event model.CompletionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid completion body"})
		return
	}
	defer r.Body.Close()
	if event.Source == "" {
		event.Source = model.SOURCE_USER
	}
	a, err := s.executorService.ReportCompletion(event)
	if err != nil {
		logger.Error("error reporting completion", zap.String("node", event.NodeId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleStartTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.executorService.StartTask(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleSkipNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.executorService.SkipNode(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleCancelNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.executorService.CancelNode(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleCancelAssignment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.executorService.CancelAssignment(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleAgentResult(w http.ResponseWriter, r *http.Request) {
	var result model.AgentResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid agent result body"})
		return
	}
	defer r.Body.Close()
	a, err := s.executorService.OnAgentResult(result)
	if err != nil {
		logger.Error("error handling agent result", zap.String("correlationId", result.CorrelationId), zap.Error(err))
		respondWithError(w, err)
		return
	}
	if a == nil {
		// agent reported failure, nothing progressed
		respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (s *Server) HandleUpsertFollowup(w http.ResponseWriter, r *http.Request) {
	var f model.TaskFollowup
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid followup body"})
		return
	}
	defer r.Body.Close()
	id, err := s.executorService.UpsertFollowup(f)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) HandlePauseFollowup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.executorService.PauseFollowup(id); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) HandleResumeFollowup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.executorService.ResumeFollowup(id); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "active"})
}
