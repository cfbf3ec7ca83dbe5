package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/pkg/types"
)

// Slack rejects button values longer than this.
const maxButtonValue = 2000

var ErrButtonValueTooLong = errors.New("slack button value too long")

// BuildBlocks renders a message as Slack Block Kit blocks. Rich cards become a
// section plus an actions block; Adaptive cards must be adapted first.
func BuildBlocks(msg types.Message) ([]map[string]any, error) {
	var blocks []map[string]any
	if msg.Text != "" {
		blocks = append(blocks, section(msg.Text))
	}
	for i, att := range msg.Attachments {
		card, ok := richCard(att.Content)
		if !ok {
			if att.ContentURL != "" {
				blocks = append(blocks, section("<"+att.ContentURL+"|"+fallback(att.Name, att.ContentURL)+">"))
			}
			continue
		}
		if text := cardText(card); text != "" {
			blocks = append(blocks, section(text))
		}
		if len(card.Buttons) == 0 {
			continue
		}
		elements := make([]map[string]any, 0, len(card.Buttons))
		for j, action := range card.Buttons {
			el, err := button(fmt.Sprintf("cardkit_%d_%d", i, j), action)
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
		}
		blocks = append(blocks, map[string]any{
			"type":     "actions",
			"block_id": fmt.Sprintf("card_%d", i),
			"elements": elements,
		})
	}
	return blocks, nil
}

// messagePayload is the body shared by chat.postMessage and chat.update.
func messagePayload(channel string, msg types.Message) (map[string]any, error) {
	blocks, err := BuildBlocks(msg)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"channel": channel,
		"text":    fallback(msg.Text, summary(msg)),
	}
	if len(blocks) > 0 {
		payload["blocks"] = blocks
	}
	return payload, nil
}

func section(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func button(actionID string, action types.CardAction) (map[string]any, error) {
	el := map[string]any{
		"type":      "button",
		"action_id": actionID,
		"text":      map[string]any{"type": "plain_text", "text": fallback(action.Title, action.Type)},
	}
	switch action.Type {
	case types.ActionOpenURL, types.ActionSignin:
		if u, ok := action.Value.(string); ok {
			el["url"] = u
		}
		return el, nil
	}

	value, err := buttonValue(action)
	if err != nil {
		return nil, err
	}
	if len(value) > maxButtonValue {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrButtonValueTooLong, actionID, len(value))
	}
	el["value"] = value
	return el, nil
}

// buttonValue is what Slack echoes back on click: the action payload as JSON
// when there is one, otherwise the text the button would have sent.
func buttonValue(action types.CardAction) (string, error) {
	switch v := action.Value.(type) {
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case string:
		if action.Type == types.ActionImBack || action.Text == "" {
			return v, nil
		}
	case nil:
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return action.Text, nil
}

func richCard(content any) (types.RichCard, bool) {
	switch c := content.(type) {
	case *types.RichCard:
		if c == nil {
			return types.RichCard{}, false
		}
		return *c, true
	case types.RichCard:
		return c, true
	case map[string]any:
		raw, err := json.Marshal(c)
		if err != nil {
			return types.RichCard{}, false
		}
		var card types.RichCard
		if err := cardtree.DecodeJSON(raw, &card); err != nil {
			return types.RichCard{}, false
		}
		return card, true
	}
	return types.RichCard{}, false
}

func cardText(card types.RichCard) string {
	var parts []string
	if card.Title != "" {
		parts = append(parts, "*"+card.Title+"*")
	}
	if card.Subtitle != "" {
		parts = append(parts, "_"+card.Subtitle+"_")
	}
	if card.Text != "" {
		parts = append(parts, card.Text)
	}
	return strings.Join(parts, "\n")
}

func summary(msg types.Message) string {
	for _, att := range msg.Attachments {
		if card, ok := richCard(att.Content); ok && card.Title != "" {
			return card.Title
		}
	}
	return "New message"
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
