package analysis

import "fmt"

type DiagnosticKind string

const (
	DiagMalformedEvaluation DiagnosticKind = "malformed_evaluation"
	DiagDegenerateGame      DiagnosticKind = "degenerate_game"
	DiagUnknownResult       DiagnosticKind = "unknown_result"
	DiagGameFailed          DiagnosticKind = "game_failed"
)

// Diagnostic is a non-fatal finding scoped to one game. Ply is -1 for
// game-level findings.
type Diagnostic struct {
	Kind   DiagnosticKind
	Ply    int
	Detail string
}

func (d Diagnostic) String() string {
	if d.Ply < 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Detail)
	}
	return fmt.Sprintf("%s at ply %d: %s", d.Kind, d.Ply, d.Detail)
}
