package cardmanager

import (
	"context"

	"github.com/davidahmann/cardkit/pkg/types"
)

// Channel delivers messages to one messaging provider. Implementations must
// not retain or modify the messages they are given.
type Channel interface {
	// ID is the channel id carried in ConversationRef.ChannelID.
	ID() string
	// Send delivers the batch and returns one provider message id per item.
	Send(ctx context.Context, conv types.ConversationRef, batch []types.Message) ([]string, error)
	Update(ctx context.Context, conv types.ConversationRef, msg types.Message) error
	Delete(ctx context.Context, conv types.ConversationRef, messageID string) error
}

// ActionAdapter is implemented by channels that need card actions reshaped
// before sending. AdaptActions returns a new batch and leaves its input as is.
type ActionAdapter interface {
	AdaptActions(batch []types.Message) ([]types.Message, error)
}

// TurnHandler is the bot logic run for an incoming message.
type TurnHandler interface {
	HandleTurn(ctx context.Context, msg types.Message) error
}

type TurnHandlerFunc func(ctx context.Context, msg types.Message) error

func (f TurnHandlerFunc) HandleTurn(ctx context.Context, msg types.Message) error {
	return f(ctx, msg)
}
