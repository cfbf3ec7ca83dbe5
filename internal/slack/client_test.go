package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/davidahmann/cardkit/internal/cardmanager"
	"github.com/davidahmann/cardkit/pkg/types"
)

type apiCall struct {
	Method string
	Body   map[string]any
}

// fakeSlack records Web API calls and answers them with ts values 1.0, 2.0, ...
func fakeSlack(t *testing.T, reply func(method string) string) (*httptest.Server, func() []apiCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []apiCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		mu.Lock()
		calls = append(calls, apiCall{Method: r.URL.Path[1:], Body: body})
		n := len(calls)
		mu.Unlock()
		if reply != nil {
			_, _ = w.Write([]byte(reply(r.URL.Path[1:])))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": strconv.Itoa(n) + ".0"})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []apiCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]apiCall(nil), calls...)
	}
}

var slackConv = types.ConversationRef{ChannelID: ChannelID, ConversationID: "C123"}

func TestClientSend(t *testing.T) {
	srv, calls := fakeSlack(t, nil)
	c := &Client{Token: "xoxb-test", BaseURL: srv.URL, HTTP: srv.Client()}

	card := &types.RichCard{Title: "Lunch", Buttons: []types.CardAction{
		{Type: types.ActionMessageBack, Title: "Pizza", Value: map[string]any{"food": "pizza"}},
	}}
	ids, err := c.Send(context.Background(), slackConv, []types.Message{
		{Type: types.MessageTypeMessage, Text: "hi"},
		{Type: "typing"},
		{Attachments: []types.Attachment{card.ToAttachment(types.ContentTypeHeroCard)}},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ids) != 3 || ids[0] != "1.0" || ids[1] != "" || ids[2] != "2.0" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	got := calls()
	if len(got) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(got))
	}
	for _, call := range got {
		if call.Method != "chat.postMessage" || call.Body["channel"] != "C123" {
			t.Fatalf("unexpected call: %+v", call)
		}
	}
	if got[1].Body["text"] != "Lunch" {
		t.Fatalf("expected fallback text from card title, got %v", got[1].Body["text"])
	}
}

func TestClientUpdateAndDelete(t *testing.T) {
	srv, calls := fakeSlack(t, nil)
	c := &Client{Token: "xoxb-test", BaseURL: srv.URL, HTTP: srv.Client()}
	ctx := context.Background()

	if err := c.Update(ctx, slackConv, types.Message{ID: "9.9", Text: "edited"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Delete(ctx, slackConv, "9.9"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := calls()
	if len(got) != 2 || got[0].Method != "chat.update" || got[1].Method != "chat.delete" {
		t.Fatalf("unexpected calls: %+v", got)
	}
	if got[0].Body["ts"] != "9.9" || got[1].Body["ts"] != "9.9" {
		t.Fatalf("expected ts on both calls: %+v", got)
	}
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := &Client{BaseURL: "https://example.test", HTTP: http.DefaultClient}
	if _, err := c.Send(ctx, slackConv, []types.Message{{Text: "x"}}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	c.Token = "x"
	if err := c.Delete(ctx, types.ConversationRef{ChannelID: ChannelID}, "1.0"); err == nil {
		t.Fatalf("expected missing channel error")
	}

	for name, body := range map[string]string{
		"api error":     `{"ok":false,"error":"nope"}`,
		"generic error": `{"ok":false}`,
		"missing ts":    `{"ok":true}`,
		"decode":        `not-json`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := &Client{Token: "x", BaseURL: srv.URL, HTTP: srv.Client()}
		if _, err := c.Send(ctx, slackConv, []types.Message{{Text: "x"}}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		srv.Close()
	}
}

func TestClientDefaultHTTPClient(t *testing.T) {
	srv, _ := fakeSlack(t, func(string) string { return `{"ok":true}` })
	c := &Client{Token: "xoxb-test", BaseURL: srv.URL}
	if err := c.Delete(context.Background(), slackConv, "1.0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if defaultHTTP.Timeout == 0 {
		t.Fatalf("expected non-zero timeout")
	}
}

func TestClientIsChannelAndAdapter(t *testing.T) {
	var c cardmanager.Channel = &Client{}
	if _, ok := c.(cardmanager.ActionAdapter); !ok {
		t.Fatalf("expected slack client to adapt card actions")
	}
	if c.ID() != "slack" {
		t.Fatalf("unexpected id %s", c.ID())
	}
}
