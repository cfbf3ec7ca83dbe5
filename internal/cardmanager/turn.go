package cardmanager

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/cardkit/internal/cardtree"
	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

type Outcome string

const (
	Proceed      Outcome = "proceed"
	ShortCircuit Outcome = "short_circuit"
)

// Decision is the result of checking one incoming message.
type Decision struct {
	Outcome Outcome
	// IDs are the ids the click carried.
	IDs []dataid.DataID
	// Deactivated is set when IDs were taken out of the live set.
	Deactivated bool
	// Deleted lists the messages removed from the log and the channel.
	Deleted []string
	Reason  string
}

func (d Decision) Proceed() bool {
	return d.Outcome == Proceed
}

// OnTurn decides whether an incoming message may reach the bot and applies
// the per-click bookkeeping. Messages that are not clicks, and clicks
// without ids, always proceed. Tracking state is changed with at most one
// write; source messages are deleted from the channel only after it lands.
func (m *Manager) OnTurn(ctx context.Context, msg types.Message) (Decision, error) {
	conv := msg.Conversation
	payload := cardtree.IncomingPayload(msg)
	if payload == nil {
		return Decision{Outcome: Proceed, Reason: "not a click"}, nil
	}
	found, err := cardtree.ExtractIDs(payload, cardtree.KindActionPayload)
	if err != nil {
		return Decision{}, fmt.Errorf("cardmanager: read click ids: %w", err)
	}
	ids := found.Slice()
	if len(ids) == 0 {
		return Decision{Outcome: Proceed, Reason: "no ids"}, nil
	}

	p, updating := m.profile(conv)
	autoDeactivate := dataid.Behavior(payload, dataid.BehaviorAutoDeactivate)
	exempt := autoDeactivate != nil && !*autoDeactivate
	forced := autoDeactivate != nil && *autoDeactivate

	track := p.Tracks() && !exempt
	deactivate := (track && p.DeactivateOnAction) || forced
	deleteSource := (p.DeleteOnAction && !exempt) || (updating && forced)

	d := Decision{Outcome: Proceed, IDs: ids}
	switch {
	case exempt:
		d.Reason = "exempt"
	case !track:
		d.Reason = "untracked"
	}

	var removed []tracking.SavedMessage
	mutate := func(rec *tracking.Record) (bool, error) {
		removed = nil
		d.Outcome = Proceed
		if track {
			if authorized(p.Tracking, *rec, ids) {
				d.Reason = "live"
			} else {
				d.Outcome = ShortCircuit
				d.Reason = "used"
			}
		}
		changed := false
		if deactivate {
			d.Deactivated = true
			changed = rec.Disable(ids...)
		}
		if deleteSource {
			broadest, _ := dataid.Broadest(ids)
			removed = rec.RemoveTagged(broadest)
			changed = changed || len(removed) > 0
		}
		return changed, nil
	}

	key := conv.Key()
	if track || deactivate || deleteSource {
		if _, err := m.tracker.Update(ctx, key, mutate); err != nil {
			return Decision{}, fmt.Errorf("cardmanager: update tracking: %w", err)
		}
	}

	if len(removed) > 0 {
		d.Deleted = m.deleteSources(ctx, conv, removed)
	}
	m.metrics.TurnDecision(conv.ChannelID, string(d.Outcome))
	m.log.Debug("card turn decided",
		"conversation", key,
		"outcome", d.Outcome,
		"reason", d.Reason,
		"ids", len(ids),
		"deleted", len(d.Deleted),
	)
	return d, nil
}

// authorized ORs the verdict of each id under the tracking style.
func authorized(style policy.TrackingStyle, rec tracking.Record, ids []dataid.DataID) bool {
	for _, id := range ids {
		live := rec.IsLive(id)
		switch style {
		case policy.TrackEnabled:
			if live {
				return true
			}
		case policy.TrackDisabled:
			if !live {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// deleteSources asks the channel to delete the messages in parallel and
// returns the ids it managed to delete. Failures are logged; the log entries
// are already gone.
func (m *Manager) deleteSources(ctx context.Context, conv types.ConversationRef, msgs []tracking.SavedMessage) []string {
	ch, err := m.channel(conv)
	if err != nil {
		m.log.Warn("cannot delete card sources", "conversation", conv.Key(), "error", err)
		return nil
	}

	ok := make([]bool, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sm := range msgs {
		i, sm := i, sm
		g.Go(func() error {
			if err := ch.Delete(gctx, conv, sm.ID); err != nil {
				m.metrics.ChannelError("delete")
				m.log.Warn("delete card source failed", "conversation", conv.Key(), "message_id", sm.ID, "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var deleted []string
	for i, sm := range msgs {
		if ok[i] {
			deleted = append(deleted, sm.ID)
		}
	}
	return deleted
}

// Middleware runs OnTurn ahead of next and calls next only when the turn
// proceeds.
func (m *Manager) Middleware(next TurnHandler) TurnHandler {
	return TurnHandlerFunc(func(ctx context.Context, msg types.Message) error {
		d, err := m.OnTurn(ctx, msg)
		if err != nil {
			return err
		}
		if !d.Proceed() {
			return nil
		}
		return next.HandleTurn(ctx, msg)
	})
}
