package cardmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeChannel struct {
	id string

	mu        sync.Mutex
	next      int
	sent      [][]types.Message
	updated   []types.Message
	deleted   []string
	failSend  error
	failMsgID string
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(_ context.Context, _ types.ConversationRef, batch []types.Message) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend != nil {
		return nil, c.failSend
	}
	c.sent = append(c.sent, batch)
	ids := make([]string, len(batch))
	for i := range batch {
		c.next++
		ids[i] = fmt.Sprintf("m%d", c.next)
	}
	return ids, nil
}

func (c *fakeChannel) Update(_ context.Context, _ types.ConversationRef, msg types.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = append(c.updated, msg)
	return nil
}

func (c *fakeChannel) Delete(_ context.Context, _ types.ConversationRef, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageID == c.failMsgID {
		return errors.New("message is gone")
	}
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChannel) deletedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

// adaptingChannel marks every card action it is asked to adapt.
type adaptingChannel struct {
	*fakeChannel
	calls int
}

func (c *adaptingChannel) AdaptActions(batch []types.Message) ([]types.Message, error) {
	c.calls++
	out := make([]types.Message, len(batch))
	copy(out, batch)
	for i := range out {
		out[i].Text = "adapted"
	}
	return out, nil
}

// brokenStore reads like a memory store but fails every write.
type brokenStore struct {
	*tracking.MemoryStore
	err error
}

func (s brokenStore) Set(context.Context, string, tracking.Record) (int64, error) {
	return 0, s.err
}

func conversation(channel string) types.ConversationRef {
	return types.ConversationRef{ChannelID: channel, ConversationID: "c1", UserID: "u1"}
}

func newTestManager(t *testing.T, cfg policy.Config, channels ...Channel) (*Manager, *tracking.MemoryStore) {
	t.Helper()
	store := tracking.NewMemoryStore()
	opts := make([]Option, 0, len(channels))
	for _, ch := range channels {
		opts = append(opts, WithChannel(ch))
	}
	return New(tracking.NewTracker(store, tracking.WithMaxAttempts(32)), cfg, opts...), store
}

func click(conv types.ConversationRef, lib map[string]any) types.Message {
	return types.Message{
		Type:         types.MessageTypeMessage,
		Conversation: conv,
		Value:        map[string]any{"choice": "yes", dataid.LibraryDataKey: lib},
	}
}

func seed(t *testing.T, m *Manager, conv types.ConversationRef, mutate tracking.Mutation) {
	t.Helper()
	_, err := m.tracker.Update(context.Background(), conv.Key(), mutate)
	require.NoError(t, err)
}

func heroMessage(buttons int) types.Message {
	card := &types.RichCard{Title: "Pick"}
	for i := 0; i < buttons; i++ {
		card.Buttons = append(card.Buttons, types.CardAction{
			Type:  types.ActionMessageBack,
			Title: fmt.Sprintf("option %d", i),
			Value: map[string]any{"choice": i},
		})
	}
	return types.Message{
		Type:        types.MessageTypeMessage,
		Attachments: []types.Attachment{card.ToAttachment(types.ContentTypeHeroCard)},
	}
}

func adaptiveMessage() types.Message {
	return types.Message{
		Type: types.MessageTypeMessage,
		Attachments: []types.Attachment{{
			ContentType: types.ContentTypeAdaptiveCard,
			Content: map[string]any{
				"type":    "AdaptiveCard",
				"version": "1.4",
				"actions": []any{map[string]any{"type": types.AdaptiveSubmitAction, "title": "go"}},
			},
		}},
	}
}
