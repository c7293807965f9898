package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/praxis/logger"
	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/service"
	"github.com/mohitkumar/praxis/template"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	templates       *template.Store
	executorService *service.ExecutionService
	scheduleService *service.ScheduleService
}

func NewServer(httpPort int, templates *template.Store, executorService *service.ExecutionService, scheduleService *service.ScheduleService) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		templates:       templates,
		executorService: executorService,
		scheduleService: scheduleService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/template", s.HandleSaveDraft).Methods(http.MethodPost)
	router.HandleFunc("/template/{id}", s.HandleGetPublished).Methods(http.MethodGet)
	router.HandleFunc("/template/{id}/draft", s.HandleGetDraft).Methods(http.MethodGet)
	router.HandleFunc("/template/{id}/publish", s.HandlePublish).Methods(http.MethodPost)
	router.HandleFunc("/template/{id}/version/{version}", s.HandleGetVersion).Methods(http.MethodGet)
	router.HandleFunc("/templates", s.HandleListTemplates).Methods(http.MethodGet)

	router.HandleFunc("/assignment", s.HandleInstantiate).Methods(http.MethodPost)
	router.HandleFunc("/assignment/{id}", s.HandleGetAssignment).Methods(http.MethodGet)
	router.HandleFunc("/assignment/{id}/cancel", s.HandleCancelAssignment).Methods(http.MethodPost)
	router.HandleFunc("/assignment/complete", s.HandleReportCompletion).Methods(http.MethodPost)
	router.HandleFunc("/assignment/task/{id}/start", s.HandleStartTask).Methods(http.MethodPost)
	router.HandleFunc("/assignment/node/{id}/skip", s.HandleSkipNode).Methods(http.MethodPost)
	router.HandleFunc("/assignment/node/{id}/cancel", s.HandleCancelNode).Methods(http.MethodPost)
	router.HandleFunc("/agent/result", s.HandleAgentResult).Methods(http.MethodPost)
	router.HandleFunc("/followup", s.HandleUpsertFollowup).Methods(http.MethodPost)
	router.HandleFunc("/followup/{id}/pause", s.HandlePauseFollowup).Methods(http.MethodPost)
	router.HandleFunc("/followup/{id}/resume", s.HandleResumeFollowup).Methods(http.MethodPost)

	router.HandleFunc("/schedule", s.HandleUpsertSchedule).Methods(http.MethodPost)
	router.HandleFunc("/schedule/{id}", s.HandleGetSchedule).Methods(http.MethodGet)
	router.HandleFunc("/schedule/{id}", s.HandleCancelSchedule).Methods(http.MethodDelete)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	respondWithJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto http status codes.
func statusFor(err error) int {
	var notFound model.NotFoundError
	var validation model.ValidationError
	var precondition model.PreconditionNotMet
	var conflict model.ConcurrencyConflict
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &precondition):
		return http.StatusConflict
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
