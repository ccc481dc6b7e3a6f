package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/automaton-io/automaton/logger"
	"github.com/automaton-io/automaton/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req model.WorkflowRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	runIds, err := s.executionService.SubmitRun(req)
	if err != nil {
		var capErr model.CapacityError
		if errors.As(err, &capErr) {
			respondWithError(w, http.StatusServiceUnavailable, capErr.Error())
			return
		}
		logger.Error("error submitting run", zap.String("triggerType", req.TriggerType), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error submitting run")
		return
	}
	respondOK(w, map[string]any{"runIds": runIds})
}

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "missing run id")
		return
	}
	status, found := s.executionService.GetRun(id)
	if !found {
		respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
