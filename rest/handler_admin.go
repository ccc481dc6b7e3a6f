package rest

import (
	"encoding/json"
	"net/http"

	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/model"
	"go.uber.org/zap"
)

func (s *Server) HandleRegisterJob(w http.ResponseWriter, r *http.Request) {
	var job model.ScheduledJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if err := s.executionService.RegisterJob(job); err != nil {
		logger.Error("error registering job", zap.String("name", job.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"registered": job.Name})
}

func (s *Server) HandleGetJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.executionService.Jobs())
}

func (s *Server) HandleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.executionService.Reload(); err != nil {
		logger.Error("config reload failed", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"reloaded": true})
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.executionService.Status())
}
