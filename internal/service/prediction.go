package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/sirupsen/logrus"
)

// PredictionLogStore is the append-only prediction audit log
type PredictionLogStore interface {
	CreatePredictionLog(ctx context.Context, entry *models.PredictionLog) error
}

// Predictor is the inference backend
type Predictor interface {
	Predict(ctx context.Context, payload json.RawMessage) (*models.PredictionResult, error)
}

// PredictionGateway logs prediction requests and forwards them to the inference backend
type PredictionGateway struct {
	logs    PredictionLogStore
	backend Predictor
	log     *logrus.Logger
	now     func() time.Time
}

// NewPredictionGateway initializes a new prediction gateway
func NewPredictionGateway(logs PredictionLogStore, backend Predictor, log *logrus.Logger) *PredictionGateway {
	return &PredictionGateway{logs: logs, backend: backend, log: log, now: time.Now}
}

// Predict records the request, then asks the backend for win probabilities.
// The log entry is kept even when the backend call fails. An empty body is
// handled as an empty match state.
func (g *PredictionGateway) Predict(ctx context.Context, payload json.RawMessage) (*models.PredictionResult, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if !isJSONObject(payload) {
		return nil, ErrInvalidInput
	}

	entry := &models.PredictionLog{Payload: payload, CreatedAt: g.now().UTC()}
	if err := g.logs.CreatePredictionLog(ctx, entry); err != nil {
		g.log.WithError(err).Error("Prediction log write failed")
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}

	result, err := g.backend.Predict(ctx, payload)
	if err != nil {
		g.log.WithError(err).WithField("log_id", entry.ID).Error("Inference call failed")
		return nil, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}

	g.log.WithField("log_id", entry.ID).Debug("Prediction served")
	return result, nil
}

func isJSONObject(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{' && json.Valid(b)
}
