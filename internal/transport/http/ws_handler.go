package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pathquest/internal/app"
	"pathquest/internal/content"
	"pathquest/internal/domain"
)

type WSHandler struct {
	game     *app.Game
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(game *app.Game, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		game: game,
		log:  logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
}

type codePayload struct {
	Token string `json:"token"`
}

type characterPayload struct {
	ID     string `json:"id"`
	Offset int    `json:"offset"`
}

type adminPayload struct {
	Enabled bool `json:"enabled"`
}

type editPayload struct {
	Value string `json:"value"`
}

type editResult struct {
	Applied bool                `json:"applied"`
	State   domain.GameProgress `json:"state"`
}

type quizPayload struct {
	QuizID     string `json:"quizId"`
	QuestionID int    `json:"questionId"`
	Text       string `json:"text"`
}

type clozeView struct {
	Quiz     domain.ClozeQuiz     `json:"quiz"`
	Segments []content.Segment    `json:"segments"`
	Progress domain.ClozeProgress `json:"progress"`
}

type mcqView struct {
	Quiz     domain.MCQQuiz      `json:"quiz"`
	Progress domain.MCQProgress  `json:"progress"`
	Current  *domain.MCQQuestion `json:"current,omitempty"`
}

type gameView struct {
	State     domain.GameProgress `json:"state"`
	Character *domain.Character   `json:"character,omitempty"`
	Notice    *app.Notice         `json:"notice,omitempty"`
	Cloze     []string            `json:"cloze"`
	MCQ       []string            `json:"mcq"`
}

var errBadPayload = errors.New("invalid payload")

// ServeState writes the current game view as JSON.
func (h *WSHandler) ServeState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.view()); err != nil {
		h.log.Error().Err(err).Msg("encode state")
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game actions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.game.Store().Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		typ, payload, err := h.dispatch(r.Context(), inbound)
		if err != nil {
			if !app.IsTransient(err) && !errors.Is(err, errBadPayload) {
				h.log.Error().Err(err).Str("type", inbound.Type).Msg("action failed")
			}
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{
				Message:   err.Error(),
				Transient: app.IsTransient(err),
			}}
		} else {
			send <- outboundMessage[any]{Type: typ, Payload: payload}
		}
		if notice, ok := h.game.Notice(); ok {
			send <- outboundMessage[any]{Type: "notice", Payload: notice}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch runs one inbound action and names the reply.
func (h *WSHandler) dispatch(ctx context.Context, msg inboundMessage) (string, any, error) {
	g := h.game
	switch msg.Type {
	case "view":
		return "view", h.view(), nil
	case "roll":
		roll, err := g.Roll(ctx)
		return "roll", roll, err
	case "code":
		var p codePayload
		if err := decode(msg.Payload, &p); err != nil {
			return "", nil, err
		}
		d, err := g.SubmitCode(ctx, p.Token)
		return "code", d, err
	case "character":
		var p characterPayload
		if err := decode(msg.Payload, &p); err != nil {
			return "", nil, err
		}
		var ch domain.Character
		var err error
		if p.ID != "" {
			ch, err = g.SelectCharacter(ctx, p.ID)
		} else {
			ch, err = g.CycleCharacter(ctx, p.Offset)
		}
		return "character", ch, err
	case "admin":
		var p adminPayload
		if err := decode(msg.Payload, &p); err != nil {
			return "", nil, err
		}
		state, err := g.SetAdminMode(ctx, p.Enabled)
		return "admin", state, err
	case "set_position", "set_max_steps":
		var p editPayload
		if err := decode(msg.Payload, &p); err != nil {
			return "", nil, err
		}
		edit := g.EditPosition
		if msg.Type == "set_max_steps" {
			edit = g.EditMaxSteps
		}
		applied, err := edit(ctx, p.Value)
		return msg.Type, editResult{Applied: applied, State: g.State()}, err
	case "reset_all":
		state, err := g.ResetAll(ctx)
		return "reset_all", state, err
	case "cloze_view", "cloze_answer", "cloze_submit", "cloze_retry", "cloze_reset":
		return h.dispatchCloze(ctx, msg)
	case "mcq_view", "mcq_select", "mcq_validate", "mcq_continue", "mcq_replay":
		return h.dispatchMCQ(ctx, msg)
	}
	return "", nil, errors.New("unsupported message type")
}

func (h *WSHandler) dispatchCloze(ctx context.Context, msg inboundMessage) (string, any, error) {
	var p quizPayload
	if err := decode(msg.Payload, &p); err != nil {
		return "", nil, err
	}
	engine, err := h.game.OpenCloze(p.QuizID)
	if err != nil {
		return "", nil, err
	}
	switch msg.Type {
	case "cloze_answer":
		progress, err := engine.Answer(ctx, p.QuestionID, p.Text)
		return msg.Type, progress, err
	case "cloze_submit":
		res, err := h.game.SubmitCloze(ctx, p.QuizID)
		return msg.Type, res, err
	case "cloze_retry":
		progress, err := engine.Retry(ctx)
		return msg.Type, progress, err
	case "cloze_reset":
		progress, err := engine.ResetByAdmin(ctx)
		return msg.Type, progress, err
	}
	progress, err := engine.Progress(ctx)
	return msg.Type, clozeView{Quiz: engine.Quiz(), Segments: engine.Segments(), Progress: progress}, err
}

func (h *WSHandler) dispatchMCQ(ctx context.Context, msg inboundMessage) (string, any, error) {
	var p quizPayload
	if err := decode(msg.Payload, &p); err != nil {
		return "", nil, err
	}
	engine, err := h.game.OpenMCQ(p.QuizID)
	if err != nil {
		return "", nil, err
	}
	switch msg.Type {
	case "mcq_select":
		progress, err := engine.SelectOption(ctx, p.Text)
		return msg.Type, progress, err
	case "mcq_validate":
		fb, err := engine.Validate(ctx)
		return msg.Type, fb, err
	case "mcq_continue":
		out, err := h.game.ContinueMCQ(ctx, p.QuizID)
		return msg.Type, out, err
	case "mcq_replay":
		progress, err := engine.Replay(ctx)
		return msg.Type, progress, err
	}
	view := mcqView{Quiz: engine.Quiz(), Progress: engine.Progress()}
	if q, ok := engine.Current(); ok && !view.Progress.Finished {
		view.Current = &q
	}
	return msg.Type, view, nil
}

func (h *WSHandler) view() gameView {
	v := gameView{
		State: h.game.State(),
		Cloze: h.game.ClozeIDs(),
		MCQ:   h.game.MCQIDs(),
	}
	if ch, ok := h.game.SelectedCharacter(); ok {
		v.Character = &ch
	}
	if notice, ok := h.game.Notice(); ok {
		v.Notice = &notice
	}
	return v
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}
