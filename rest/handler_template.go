package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
)

func (s *Server) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var tmpl model.WorkflowTemplate
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		respondWithError(w, model.ValidationError{Message: "invalid template body"})
		return
	}
	defer r.Body.Close()
	id, err := s.templates.SaveDraft(tmpl)
	if err != nil {
		logger.Error("error saving template draft", zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) HandlePublish(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	version, err := s.templates.Publish(id)
	if err != nil {
		logger.Error("error publishing template", zap.String("template", id), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": id, "version": version})
}

func (s *Server) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tmpl, err := s.templates.GetDraft(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tmpl)
}

func (s *Server) HandleGetPublished(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tmpl, _, err := s.templates.GetPublished(id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tmpl)
}

func (s *Server) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		respondWithError(w, model.ValidationError{Message: "version must be a number"})
		return
	}
	tmpl, err := s.templates.GetVersion(id, version)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tmpl)
}

func (s *Server) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	scope := model.TemplateScope(r.URL.Query().Get("scope"))
	list, err := s.templates.ListTemplates(scope)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}
