package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/cardkit/pkg/types"
)

func TestBotForwarderPostsTurn(t *testing.T) {
	var got types.Message
	var delivery string
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivery = r.Header.Get("X-Cardkit-Delivery")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer bot.Close()

	f := &BotForwarder{URL: bot.URL, HTTP: bot.Client()}
	msg := types.Message{
		Type:         types.MessageTypeMessage,
		Conversation: types.ConversationRef{ChannelID: "slack", ConversationID: "C1"},
		Value:        map[string]any{"food": "pizza"},
	}
	require.NoError(t, f.HandleTurn(context.Background(), msg))
	assert.Equal(t, "C1", got.Conversation.ConversationID)
	assert.Equal(t, "pizza", got.Value.(map[string]any)["food"])
	assert.NotEmpty(t, delivery)
}

func TestBotForwarderErrors(t *testing.T) {
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bot.Close()

	f := &BotForwarder{URL: bot.URL, HTTP: bot.Client()}
	assert.Error(t, f.HandleTurn(context.Background(), types.Message{}))

	f = &BotForwarder{URL: "http://127.0.0.1:1", HTTP: bot.Client()}
	assert.Error(t, f.HandleTurn(context.Background(), types.Message{}))
}

func TestBotForwarderWithoutURLOnlyLogs(t *testing.T) {
	f := &BotForwarder{}
	assert.NoError(t, f.HandleTurn(context.Background(), types.Message{}))
}
