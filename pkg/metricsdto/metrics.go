package metricsdto

// GameMetrics is the per-game record handed to downstream aggregation.
// Field names on the wire follow the historical spreadsheet columns.
type GameMetrics struct {
	GameID string `json:"game_id"`
	Source string `json:"source,omitempty"`

	WhiteGI         float64 `json:"white_gi"`
	BlackGI         float64 `json:"black_gi"`
	WhiteGPL        float64 `json:"white_gpl"`
	BlackGPL        float64 `json:"black_gpl"`
	WhiteACPL       float64 `json:"white_acpl"`
	BlackACPL       float64 `json:"black_acpl"`
	WhiteMoveNumber int     `json:"white_move_number"`
	BlackMoveNumber int     `json:"black_move_number"`

	White       string   `json:"White"`
	Black       string   `json:"Black"`
	Event       string   `json:"Event,omitempty"`
	Site        string   `json:"Site,omitempty"`
	Round       string   `json:"Round,omitempty"`
	Date        string   `json:"Date,omitempty"`
	WhiteElo    *int     `json:"WhiteElo"`
	BlackElo    *int     `json:"BlackElo"`
	Result      string   `json:"Result"`
	WhiteResult *float64 `json:"WhiteResult"`
	BlackResult *float64 `json:"BlackResult"`

	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Side is a single player's view of a GameMetrics record.
type Side struct {
	Player     string  `json:"player"`
	GI         float64 `json:"gi"`
	GPL        float64 `json:"gpl"`
	ACPL       float64 `json:"acpl"`
	MoveNumber int     `json:"move_number"`
}

func (m *GameMetrics) WhiteSide() Side {
	return Side{Player: m.White, GI: m.WhiteGI, GPL: m.WhiteGPL, ACPL: m.WhiteACPL, MoveNumber: m.WhiteMoveNumber}
}

func (m *GameMetrics) BlackSide() Side {
	return Side{Player: m.Black, GI: m.BlackGI, GPL: m.BlackGPL, ACPL: m.BlackACPL, MoveNumber: m.BlackMoveNumber}
}
