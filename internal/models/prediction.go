package models

import (
	"encoding/json"
	"time"
)

// PredictionLog is an audit record of a prediction request
type PredictionLog struct {
	ID        int64           `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"timestamp"`
}

// TeamProbability holds a team's win probability; nil means the backend did not provide one
type TeamProbability struct {
	WinningProbability *float64 `json:"winning_probability,omitempty"`
}

// PredictionResult is the normalized inference response
type PredictionResult struct {
	BattingTeam TeamProbability `json:"batting_team"`
	BowlingTeam TeamProbability `json:"bowling_team"`
}
