package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davidahmann/cardkit/pkg/types"
)

// ChannelID is the channel id Slack conversations carry.
const ChannelID = "slack"

var ErrMissingToken = errors.New("missing slack token")

var defaultHTTP = &http.Client{Timeout: 10 * time.Second}

// Client is a Slack Web API channel. Conversations map to Slack channels and
// message ids are Slack message timestamps.
type Client struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func (c *Client) ID() string {
	return ChannelID
}

// Send posts every message in order and stops at the first failure. Messages
// that are not of type message, such as typing indicators, are skipped and
// get an empty id.
func (c *Client) Send(ctx context.Context, conv types.ConversationRef, batch []types.Message) ([]string, error) {
	ids := make([]string, len(batch))
	for i, msg := range batch {
		if msg.Type != "" && msg.Type != types.MessageTypeMessage {
			continue
		}
		payload, err := messagePayload(conv.ConversationID, msg)
		if err != nil {
			return nil, err
		}
		resp, err := c.call(ctx, "chat.postMessage", payload)
		if err != nil {
			return nil, err
		}
		if resp.TS == "" {
			return nil, fmt.Errorf("missing slack message ts")
		}
		ids[i] = resp.TS
	}
	return ids, nil
}

func (c *Client) Update(ctx context.Context, conv types.ConversationRef, msg types.Message) error {
	payload, err := messagePayload(conv.ConversationID, msg)
	if err != nil {
		return err
	}
	payload["ts"] = msg.ID
	_, err = c.call(ctx, "chat.update", payload)
	return err
}

func (c *Client) Delete(ctx context.Context, conv types.ConversationRef, messageID string) error {
	_, err := c.call(ctx, "chat.delete", map[string]any{
		"channel": conv.ConversationID,
		"ts":      messageID,
	})
	return err
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (apiResponse, error) {
	hc := c.HTTP
	if hc == nil {
		hc = defaultHTTP
	}
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	if c.Token == "" {
		return apiResponse{}, ErrMissingToken
	}
	if payload["channel"] == "" {
		return apiResponse{}, fmt.Errorf("missing slack channel")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return apiResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/"+method, bytes.NewBuffer(body))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	res, err := hc.Do(req)
	if err != nil {
		return apiResponse{}, err
	}
	defer res.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return apiResponse{}, fmt.Errorf("%s: %w", method, err)
	}
	if !resp.OK {
		if resp.Error == "" {
			resp.Error = "slack api error"
		}
		return apiResponse{}, fmt.Errorf("%s: %s", method, resp.Error)
	}
	return resp, nil
}
