package slack

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/davidahmann/cardkit/internal/cardmanager"
	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/pkg/types"
)

// InteractionHandler turns Slack block_actions callbacks into turns.
type InteractionHandler struct {
	SigningSecret string
	Turns         cardmanager.TurnHandler
	Now           func() time.Time
	Log           *logger.Logger
}

func (h *InteractionHandler) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	if h.Turns == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("X-Slack-Signature")
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	if h.SigningSecret != "" {
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		if err := VerifySignature(h.SigningSecret, sig, timestamp, body, now); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	payload, err := parsePayload(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.Turns.HandleTurn(r.Context(), payload.message()); err != nil {
		h.log().Error("slack turn failed", "channel", payload.Channel.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *InteractionHandler) log() *logger.Logger {
	if h.Log == nil {
		return logger.Nop()
	}
	return h.Log
}

type slackPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Container struct {
		MessageTS string `json:"message_ts"`
	} `json:"container"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

func parsePayload(body []byte) (slackPayload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return slackPayload{}, err
	}
	payloadStr := values.Get("payload")
	if payloadStr == "" {
		return slackPayload{}, errors.New("missing payload")
	}

	var payload slackPayload
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		return slackPayload{}, err
	}
	if len(payload.Actions) == 0 {
		return slackPayload{}, errors.New("missing actions")
	}
	if payload.Channel.ID == "" {
		return slackPayload{}, errors.New("missing channel")
	}
	return payload, nil
}

// message is the incoming turn for the first clicked button. A value holding
// a JSON object becomes the message value, anything else its text.
func (p slackPayload) message() types.Message {
	msg := types.Message{
		Type: types.MessageTypeMessage,
		Conversation: types.ConversationRef{
			ChannelID:      ChannelID,
			ConversationID: p.Channel.ID,
			UserID:         p.User.ID,
			MessageID:      p.Container.MessageTS,
		},
	}
	value := p.Actions[0].Value
	var doc map[string]any
	if err := cardtree.DecodeJSON([]byte(value), &doc); err == nil && doc != nil {
		msg.Value = doc
	} else {
		msg.Text = value
	}
	return msg
}
