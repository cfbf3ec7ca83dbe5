package cardtree

import (
	"fmt"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/pkg/types"
)

func adaptiveCard(actions int) types.Document {
	acts := make([]any, actions)
	for i := range acts {
		acts[i] = map[string]any{"type": types.AdaptiveSubmitAction, "title": fmt.Sprintf("submit %d", i)}
	}
	return types.Document{
		"type":    "AdaptiveCard",
		"version": "1.4",
		"body":    []any{map[string]any{"type": "TextBlock", "text": "Pick one"}},
		"actions": acts,
	}
}

func heroCard(buttons int) *types.RichCard {
	card := &types.RichCard{Title: "Hero"}
	for i := 0; i < buttons; i++ {
		card.Buttons = append(card.Buttons, types.CardAction{
			Type:  types.ActionMessageBack,
			Title: fmt.Sprintf("button %d", i),
			Value: map[string]any{"choice": i},
		})
	}
	return card
}

// carouselMessage holds an Adaptive card with one action and a hero card with two.
func carouselMessage() types.Message {
	return types.Message{
		Type:             types.MessageTypeMessage,
		AttachmentLayout: types.LayoutCarousel,
		Attachments: []types.Attachment{
			{ContentType: types.ContentTypeAdaptiveCard, Content: adaptiveCard(1)},
			heroCard(2).ToAttachment(types.ContentTypeHeroCard),
		},
	}
}

func countScope(ids dataid.Set, scope dataid.Scope) int {
	return len(ids.Values(scope))
}
