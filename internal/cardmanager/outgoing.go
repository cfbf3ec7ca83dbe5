package cardmanager

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

var ErrMissingMessageID = errors.New("cardmanager: message id is required")

// ErrRecord marks a failed tracking write after the channel call succeeded.
var ErrRecord = errors.New("cardmanager: tracking write failed")

// prepare runs the outgoing pipeline on a copy of batch.
func (m *Manager) prepare(ch Channel, p policy.Profile, batch []types.Message) ([]types.Message, error) {
	var err error
	out := batch
	if p.ConvertAdaptiveCards {
		if out, err = cardtree.ConvertAdaptiveCards(out, cardtree.KindBatch); err != nil {
			return nil, fmt.Errorf("cardmanager: convert adaptive cards: %w", err)
		}
	}
	if adapter, ok := ch.(ActionAdapter); ok && p.AdaptCardActions {
		if out, err = adapter.AdaptActions(out); err != nil {
			return nil, fmt.Errorf("cardmanager: adapt card actions: %w", err)
		}
	}
	if p.ApplyIDs {
		if out, err = cardtree.AssignIDs(out, cardtree.KindBatch, p.IDOptions); err != nil {
			return nil, fmt.Errorf("cardmanager: assign ids: %w", err)
		}
	}
	// ids are written below; never into the caller's slice
	return slices.Clone(out), nil
}

// Send prepares a batch, hands it to the conversation's channel and records
// the result. The returned batch is what was sent, with provider message ids
// filled in. The caller's batch is never modified, so it can be resent.
func (m *Manager) Send(ctx context.Context, conv types.ConversationRef, batch []types.Message) ([]types.Message, error) {
	ch, err := m.channel(conv)
	if err != nil {
		return nil, err
	}
	p, _ := m.profile(conv)

	sent, err := m.prepare(ch, p, batch)
	if err != nil {
		return nil, err
	}
	for i := range sent {
		sent[i].Conversation = conv
	}

	msgIDs, err := ch.Send(ctx, conv, sent)
	if err != nil {
		m.metrics.ChannelError("send")
		return nil, fmt.Errorf("cardmanager: send: %w", err)
	}
	if len(msgIDs) != len(sent) {
		return nil, fmt.Errorf("cardmanager: channel returned %d ids for %d messages", len(msgIDs), len(sent))
	}
	for i := range sent {
		sent[i].ID = msgIDs[i]
	}
	m.metrics.MessageOp(conv.ChannelID, "send")

	ids, err := cardtree.ExtractIDs(sent, cardtree.KindBatch)
	if err != nil {
		return nil, fmt.Errorf("cardmanager: read sent ids: %w", err)
	}
	m.countIDs(ids)

	clear := p.ClearEnabledOnSend && p.Tracking == policy.TrackEnabled && slices.ContainsFunc(sent, isMessage)
	enable := p.EnableOnSend && p.Tracking == policy.TrackEnabled
	var descriptors []tracking.SavedMessage
	if p.SaveMessagesOnSend {
		for _, msg := range sent {
			if !msg.HasAttachments() {
				continue
			}
			desc, err := m.describe(msg)
			if err != nil {
				return nil, err
			}
			descriptors = append(descriptors, desc)
		}
	}

	if clear || enable || len(descriptors) > 0 {
		_, err = m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
			changed := false
			if clear {
				changed = rec.Clear()
			}
			if enable {
				changed = rec.Enable(ids.Slice()...) || changed
			}
			for _, desc := range descriptors {
				changed = rec.SaveMessage(desc) || changed
			}
			return changed, nil
		})
		if err != nil {
			return sent, fmt.Errorf("%w: send: %w", ErrRecord, err)
		}
	}

	m.log.Debug("cards sent", "conversation", conv.Key(), "messages", len(sent), "ids", ids.Len())
	return sent, nil
}

// Update replaces a message sent earlier. It runs the same pipeline as Send
// but never clears the live set, since no new content is being introduced.
// The message stays in the log if it was logged before.
func (m *Manager) Update(ctx context.Context, conv types.ConversationRef, msg types.Message) (types.Message, error) {
	if msg.ID == "" {
		return types.Message{}, ErrMissingMessageID
	}
	ch, err := m.channel(conv)
	if err != nil {
		return types.Message{}, err
	}
	p, _ := m.profile(conv)

	prepared, err := m.prepare(ch, p, []types.Message{msg})
	if err != nil {
		return types.Message{}, err
	}
	updated := prepared[0]
	updated.Conversation = conv

	if err := ch.Update(ctx, conv, updated); err != nil {
		m.metrics.ChannelError("update")
		return types.Message{}, fmt.Errorf("cardmanager: update: %w", err)
	}
	m.metrics.MessageOp(conv.ChannelID, "update")

	ids, err := cardtree.ExtractIDs(updated, cardtree.KindMessage)
	if err != nil {
		return updated, fmt.Errorf("cardmanager: read updated ids: %w", err)
	}
	m.countIDs(ids)
	desc, err := m.describe(updated)
	if err != nil {
		return updated, err
	}

	enable := p.EnableOnSend && p.Tracking == policy.TrackEnabled
	_, err = m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
		changed := false
		if enable {
			changed = rec.Enable(ids.Slice()...)
		}
		if _, logged := rec.Message(updated.ID); p.SaveMessagesOnSend || logged {
			changed = rec.SaveMessage(desc) || changed
		}
		return changed, nil
	})
	if err != nil {
		return updated, fmt.Errorf("%w: update: %w", ErrRecord, err)
	}
	return updated, nil
}

// Delete removes a message from the channel and then from the log. Its ids
// stay in the live set.
func (m *Manager) Delete(ctx context.Context, conv types.ConversationRef, messageID string) error {
	if messageID == "" {
		return ErrMissingMessageID
	}
	ch, err := m.channel(conv)
	if err != nil {
		return err
	}
	if err := ch.Delete(ctx, conv, messageID); err != nil {
		m.metrics.ChannelError("delete")
		return fmt.Errorf("cardmanager: delete: %w", err)
	}
	m.metrics.MessageOp(conv.ChannelID, "delete")

	_, err = m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
		return rec.RemoveMessage(messageID), nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete: %w", ErrRecord, err)
	}
	return nil
}

func (m *Manager) describe(msg types.Message) (tracking.SavedMessage, error) {
	ids, err := cardtree.ExtractIDs(msg, cardtree.KindMessage)
	if err != nil {
		return tracking.SavedMessage{}, fmt.Errorf("cardmanager: read message ids: %w", err)
	}
	digest, err := tracking.Digest(msg)
	if err != nil {
		return tracking.SavedMessage{}, fmt.Errorf("cardmanager: digest message: %w", err)
	}
	return tracking.SavedMessage{
		ID:      msg.ID,
		Digest:  digest,
		IDs:     ids.Slice(),
		SavedAt: m.now().UTC(),
		Message: msg,
	}, nil
}

func (m *Manager) countIDs(ids dataid.Set) {
	for _, scope := range dataid.Scopes() {
		m.metrics.IDsAssigned(string(scope), len(ids.Values(scope)))
	}
}

func isMessage(msg types.Message) bool {
	return msg.Type == "" || msg.Type == types.MessageTypeMessage
}
