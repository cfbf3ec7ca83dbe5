package slack

import (
	"slices"

	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/pkg/types"
)

// AdaptActions rewrites Adaptive cards, which Slack cannot render, into hero
// cards: the first TextBlock becomes the title and top-level submit and
// open-url actions become buttons. Submit data travels as the button value.
func (c *Client) AdaptActions(batch []types.Message) ([]types.Message, error) {
	out := slices.Clone(batch)
	for i, msg := range out {
		var atts []types.Attachment
		for j, att := range msg.Attachments {
			if att.ContentType != types.ContentTypeAdaptiveCard {
				continue
			}
			card, ok := heroFromAdaptive(att.Content)
			if !ok {
				continue
			}
			if atts == nil {
				atts = slices.Clone(msg.Attachments)
			}
			atts[j] = card.ToAttachment(types.ContentTypeHeroCard)
		}
		if atts != nil {
			out[i].Attachments = atts
		}
	}
	return out, nil
}

func heroFromAdaptive(content any) (*types.RichCard, bool) {
	doc := cardtree.ToDocument(content)
	if doc == nil {
		return nil, false
	}
	card := &types.RichCard{}
	if body, ok := doc["body"].([]any); ok {
		for _, el := range body {
			block, ok := el.(map[string]any)
			if !ok || block["type"] != "TextBlock" {
				continue
			}
			text, _ := block["text"].(string)
			if card.Title == "" {
				card.Title = text
			} else if card.Text == "" {
				card.Text = text
			}
		}
	}

	actions, _ := doc["actions"].([]any)
	for _, el := range actions {
		action, ok := el.(map[string]any)
		if !ok {
			continue
		}
		title, _ := action["title"].(string)
		switch action[types.AdaptivePropType] {
		case types.AdaptiveSubmitAction:
			btn := types.CardAction{Type: types.ActionMessageBack, Title: title}
			switch data := action[types.AdaptivePropData].(type) {
			case map[string]any:
				btn.Value = data
			case nil:
			default:
				btn.Value = map[string]any{"data": data}
			}
			card.Buttons = append(card.Buttons, btn)
		case "Action.OpenUrl":
			u, _ := action["url"].(string)
			card.Buttons = append(card.Buttons, types.CardAction{Type: types.ActionOpenURL, Title: title, Value: u})
		}
	}
	return card, true
}
