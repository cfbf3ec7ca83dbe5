package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/pkg/types"
)

// BotForwarder relays turns that got past the card manager to the bot's
// HTTP endpoint. With no URL configured it only logs them.
type BotForwarder struct {
	URL  string
	HTTP *http.Client
	Log  *logger.Logger
}

var forwardHTTP = &http.Client{Timeout: 15 * time.Second}

func (f *BotForwarder) HandleTurn(ctx context.Context, msg types.Message) error {
	log := f.Log
	if log == nil {
		log = logger.Nop()
	}
	if f.URL == "" {
		log.Info("turn accepted", "channel", msg.Conversation.ChannelID, "conversation", msg.Conversation.ConversationID)
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cardkit-Delivery", uuid.NewString())

	client := f.HTTP
	if client == nil {
		client = forwardHTTP
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("forward turn: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("forward turn: bot returned %d", resp.StatusCode)
	}
	return nil
}
