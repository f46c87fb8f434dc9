package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/factcheck/internal/agents"
	"github.com/snappy-loop/factcheck/internal/markup"
	"github.com/snappy-loop/factcheck/internal/models"
)

const (
	factCheckWSReadLimit    = 64 << 10
	factCheckWSIdleTimeout  = 10 * time.Minute
	factCheckWSWriteTimeout = 30 * time.Second
)

var factCheckWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// factCheckWSInMessage is the JSON shape sent from the client.
type factCheckWSInMessage struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// factCheckWSOutMessage is the JSON shape sent to the client. Type is one of
// claim, step, result or error.
type factCheckWSOutMessage struct {
	Type    string                   `json:"type"`
	ID      string                   `json:"id,omitempty"`
	Claim   *models.Claim            `json:"claim,omitempty"`
	Step    *models.AgentStep        `json:"step,omitempty"`
	Res     *models.ScoreAndComments `json:"res,omitempty"`
	HTML    string                   `json:"comments_html,omitempty"`
	Status  int                      `json:"status,omitempty"`
	Message string                   `json:"message,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Code    string                   `json:"code,omitempty"`
}

// FactCheckWS handles GET /fact/check/ws. It streams the extracted claim, every agent
// step and the final verdict for each {"type":"check","text":...} message.
// A check in flight is cancelled once the client disconnects.
func (h *Handler) FactCheckWS(w http.ResponseWriter, r *http.Request) {
	conn, err := factCheckWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("fact-check ws upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadLimit(factCheckWSReadLimit)
	conn.SetReadDeadline(time.Now().Add(factCheckWSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(factCheckWSIdleTimeout))
		return nil
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	inbox := make(chan []byte)
	go readWS(ctx, cancel, conn, inbox)

	for raw := range inbox {
		var in factCheckWSInMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = writeWSJSON(conn, factCheckWSOutMessage{Type: "error", Status: http.StatusBadRequest, Error: "invalid JSON: " + err.Error()})
			continue
		}
		if in.Type != "check" {
			_ = writeWSJSON(conn, factCheckWSOutMessage{Type: "error", Status: http.StatusBadRequest, Error: "expected type: check"})
			continue
		}
		if in.Text == nil {
			_ = writeWSJSON(conn, factCheckWSOutMessage{Type: "error", Status: http.StatusBadRequest, Error: errTextRequired.Error()})
			continue
		}

		if err := h.streamCheck(ctx, conn, *in.Text); err != nil {
			log.Ctx(ctx).Debug().Err(err).Msg("fact-check ws write")
			return
		}
	}
}

// readWS is the connection's only reader. It keeps reading while a check runs
// so a close frame or dropped connection cancels ctx; inbox is closed on exit.
func readWS(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbox chan<- []byte) {
	defer close(inbox)
	defer cancel()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Ctx(ctx).Debug().Err(err).Msg("fact-check ws read")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(factCheckWSIdleTimeout))
		select {
		case inbox <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// streamCheck runs one fact-check, writing progress as it happens. Only write
// errors are returned; pipeline errors are sent to the client.
func (h *Handler) streamCheck(ctx context.Context, conn *websocket.Conn, text string) error {
	id := uuid.NewString()
	var writeErr error
	send := func(msg factCheckWSOutMessage) {
		if writeErr != nil {
			return
		}
		msg.ID = id
		writeErr = writeWSJSON(conn, msg)
	}

	ctx = agents.WithObserver(ctx, agents.ObserverFuncs{
		OnClaim: func(c models.Claim) { send(factCheckWSOutMessage{Type: "claim", Claim: &c}) },
		OnStep:  func(s models.AgentStep) { send(factCheckWSOutMessage{Type: "step", Step: &s}) },
	})
	result, err := h.factCheck.Check(ctx, text)
	if err != nil {
		status, body := classifyError(err)
		out := factCheckWSOutMessage{Type: "error", Status: status}
		switch b := body.(type) {
		case models.MessageResponse:
			out.Message = b.Message
		case models.ErrorResponse:
			out.Error = b.Error
			out.Code = b.Code
		}
		send(out)
		return writeErr
	}
	verdict := result.Verification.Verdict
	out := factCheckWSOutMessage{Type: "result", Status: http.StatusOK, Claim: &result.Claim, Res: &verdict}
	if html, err := markup.MarkdownToHTML(verdict.Comments); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to render comments")
	} else {
		out.HTML = html
	}
	send(out)
	return writeErr
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(factCheckWSWriteTimeout))
	return conn.WriteJSON(v)
}
