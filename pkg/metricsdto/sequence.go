package metricsdto

// EvalSequence is the White-relative evaluation stream of one game,
// baseline first. It is what the normalize command emits.
type EvalSequence struct {
	GameID string    `json:"game_id"`
	White  string    `json:"White"`
	Black  string    `json:"Black"`
	Result string    `json:"Result"`
	Evals  []float64 `json:"evals"`
}
