package app

import (
	"fmt"
	"strconv"
	"strings"

	"pathquest/internal/domain"
)

// Action is what a recognized code unlocks.
type Action string

const (
	ActionAdminPanel     Action = "admin"
	ActionPositionEditor Action = "position"
	ActionClozeQuiz      Action = "cloze"
	ActionMCQQuiz        Action = "mcq"
	ActionSetMaxSteps    Action = "max_steps"
)

// MaxStepsCodePrefix introduces a "game_<n>" code that resizes the path.
const MaxStepsCodePrefix = "game_"

// Decision is the result of resolving a code.
type Decision struct {
	Action   Action `json:"action"`
	QuizID   string `json:"quizId,omitempty"`
	MaxSteps int    `json:"maxSteps,omitempty"`
}

// Feature names what the decision unlocks, as stored in GameProgress.Unlocked.
// game_<n> acts immediately and unlocks nothing.
func (d Decision) Feature() string {
	switch d.Action {
	case ActionAdminPanel, ActionPositionEditor:
		return string(d.Action)
	case ActionClozeQuiz, ActionMCQQuiz:
		return QuizFeature(d.Action, d.QuizID)
	}
	return ""
}

// QuizFeature is the unlock name of a quiz panel.
func QuizFeature(action Action, quizID string) string {
	return string(action) + ":" + quizID
}

// Gate maps secret tokens to actions. It holds no state besides its table.
type Gate struct {
	codes map[string]Decision
}

// NewGate parses a table of token -> action spec. Specs are "admin",
// "position", "cloze:<quiz id>" and "mcq:<quiz id>".
func NewGate(codes map[string]string) (*Gate, error) {
	g := &Gate{codes: make(map[string]Decision, len(codes))}
	for token, spec := range codes {
		if token == "" {
			return nil, fmt.Errorf("code table: empty token for %q", spec)
		}
		if strings.HasPrefix(token, MaxStepsCodePrefix) {
			return nil, fmt.Errorf("code table: token %q shadows the %s<n> form", token, MaxStepsCodePrefix)
		}
		d, err := parseActionSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("code table: token %q: %w", token, err)
		}
		g.codes[token] = d
	}
	return g, nil
}

func parseActionSpec(spec string) (Decision, error) {
	kind, quizID, _ := strings.Cut(spec, ":")
	switch Action(kind) {
	case ActionAdminPanel, ActionPositionEditor:
		if quizID != "" {
			return Decision{}, fmt.Errorf("action %q takes no argument", kind)
		}
		return Decision{Action: Action(kind)}, nil
	case ActionClozeQuiz, ActionMCQQuiz:
		if quizID == "" {
			return Decision{}, fmt.Errorf("action %q needs a quiz id", kind)
		}
		return Decision{Action: Action(kind), QuizID: quizID}, nil
	}
	return Decision{}, fmt.Errorf("unknown action %q", spec)
}

// Resolve maps a submitted token to its action. Unrecognized tokens, and
// game_<n> where n is not a plain positive decimal, yield ErrUnknownCode.
func (g *Gate) Resolve(token string) (Decision, error) {
	token = strings.TrimSpace(token)
	if d, ok := g.codes[token]; ok {
		return d, nil
	}
	if raw, ok := strings.CutPrefix(token, MaxStepsCodePrefix); ok {
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 && isDigits(raw) && raw[0] != '0' {
			return Decision{Action: ActionSetMaxSteps, MaxSteps: n}, nil
		}
	}
	return Decision{}, domain.ErrUnknownCode
}

// QuizIDs lists the quiz ids referenced by the table, per action.
func (g *Gate) QuizIDs(action Action) []string {
	var ids []string
	for _, d := range g.codes {
		if d.Action == action {
			ids = append(ids, d.QuizID)
		}
	}
	return ids
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
