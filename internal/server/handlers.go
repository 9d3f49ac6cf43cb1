package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/model"
	"github.com/Veraticus/dispatch/internal/normalize"
)

const maxBodyBytes = 1 << 20

// Client-facing messages.
const (
	msgTitleOrDescription = "Either title or description must be provided as a string"
	msgNoText             = "No text content provided for prediction"
	msgModelNotLoaded     = "Model not loaded"
	msgPredictionFailed   = "Internal server error during prediction"
	msgInvalidJSON        = "Request body must be a JSON object"
	msgTrainingInProgress = "Training already in progress"
	msgTrainingFailed     = "Training failed"
	msgNotFound           = "Endpoint not found"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	ModelMetadata *model.Metadata `json:"model_metadata"`
	Status        string          `json:"status"`
	ModelLoaded   bool            `json:"model_loaded"`
	Training      bool            `json:"training"`
}

type predictResponse struct {
	Assignee string `json:"assignee"`
}

type modelInfoResponse struct {
	Metadata        model.Metadata `json:"metadata"`
	Assignees       []string       `json:"assignees"`
	VocabularySize  int            `json:"vocabulary_size"`
	TrainingSamples int            `json:"training_samples"`
}

type trainResponse struct {
	TrainedAt       time.Time `json:"trained_at"`
	RunID           string    `json:"run_id"`
	Digest          string    `json:"digest"`
	ArtifactPath    string    `json:"artifact_path"`
	Assignees       []string  `json:"assignees"`
	VocabularySize  int       `json:"vocabulary_size"`
	TrainingSamples int       `json:"training_samples"`
	Accuracy        float64   `json:"accuracy"`
	DurationMS      int64     `json:"duration_ms"`
}

type notFoundResponse struct {
	Error              string   `json:"error"`
	AvailableEndpoints []string `json:"available_endpoints"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if m := s.registry.Current(); m != nil {
		resp.ModelLoaded = true
		meta := m.Metadata
		resp.ModelMetadata = &meta
	}
	if s.trainer != nil {
		resp.Training = s.trainer.Running()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidJSON, Message: err.Error()})
		return
	}

	title, titleOK := body["title"].(string)
	description, descriptionOK := body["description"].(string)
	if !titleOK && !descriptionOK {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgTitleOrDescription})
		return
	}

	text := normalize.CombineText(title, description, requestLabels(body["labels"]))
	if strings.TrimSpace(text) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoText})
		return
	}

	assignee, err := s.registry.Scorer().Predict(text)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, predictResponse{Assignee: assignee})
	case errors.Is(err, common.ErrEmptyInput):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoText})
	case errors.Is(err, common.ErrModelNotLoaded):
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: msgModelNotLoaded})
	default:
		s.logger.Error("Prediction error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgPredictionFailed, Message: err.Error()})
	}
}

func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	m := s.registry.Current()
	if m == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: msgModelNotLoaded})
		return
	}

	s.writeJSON(w, http.StatusOK, modelInfoResponse{
		Assignees:       m.AssigneeList(),
		VocabularySize:  m.VocabularySize(),
		TrainingSamples: m.TrainingSamples(),
		Metadata:        m.Metadata,
	})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	// A client hanging up must not abort a run that is already publishing.
	result, err := s.trainer.Train(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTrainingInProgress):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: msgTrainingInProgress})
		return
	case errors.Is(err, common.ErrEmptyCorpus), errors.Is(err, common.ErrMissingAssignee):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msgTrainingFailed, Message: err.Error()})
		return
	default:
		s.logger.Error("Training error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgTrainingFailed, Message: err.Error()})
		return
	}

	resp := trainResponse{
		RunID:           result.Run.ID,
		TrainedAt:       result.Model.Metadata.TrainedAt,
		Assignees:       result.Model.AssigneeList(),
		VocabularySize:  result.Model.VocabularySize(),
		TrainingSamples: result.Model.TrainingSamples(),
		Accuracy:        result.Evaluation.Accuracy,
		DurationMS:      result.Run.Duration().Milliseconds(),
	}
	if result.Artifact != nil {
		resp.Digest = result.Artifact.Digest
		resp.ArtifactPath = result.Artifact.Path
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:              msgNotFound,
		AvailableEndpoints: s.endpoints,
	})
}

// decodeObject reads a JSON object body. An empty body is an empty object.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var body map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body)
	if errors.Is(err, io.EOF) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	if body == nil {
		return map[string]any{}, nil
	}
	return body, nil
}

// requestLabels accepts labels as an array or a single string; anything else
// contributes nothing.
func requestLabels(v any) []string {
	switch labels := v.(type) {
	case string:
		return []string{labels}
	case []any:
		out := make([]string, 0, len(labels))
		for _, label := range labels {
			switch l := label.(type) {
			case nil:
			case string:
				out = append(out, l)
			default:
				out = append(out, fmt.Sprint(l))
			}
		}
		return out
	default:
		return nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
