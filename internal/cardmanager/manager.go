package cardmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/davidahmann/cardkit/internal/dataid"
	"github.com/davidahmann/cardkit/internal/logger"
	"github.com/davidahmann/cardkit/internal/metrics"
	"github.com/davidahmann/cardkit/internal/policy"
	"github.com/davidahmann/cardkit/internal/tracking"
	"github.com/davidahmann/cardkit/pkg/types"
)

var ErrUnknownChannel = errors.New("cardmanager: unknown channel")

// Manager applies the card policy around a conversation's turns: it decides
// whether incoming clicks are honored and prepares and records outgoing
// cards. All tracking state goes through the Tracker, one write per call.
type Manager struct {
	tracker *tracking.Tracker
	log     *logger.Logger
	metrics *metrics.Collectors
	now     func() time.Time

	mu       sync.RWMutex
	policy   policy.Config
	channels map[string]Channel
}

type Option func(*Manager)

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(c *metrics.Collectors) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

func WithChannel(ch Channel) Option {
	return func(m *Manager) {
		m.channels[strings.ToLower(ch.ID())] = ch
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func New(tracker *tracking.Tracker, cfg policy.Config, opts ...Option) *Manager {
	m := &Manager{
		tracker:  tracker,
		log:      logger.Nop(),
		now:      time.Now,
		policy:   cfg,
		channels: make(map[string]Channel),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the policy currently in effect.
func (m *Manager) Policy() policy.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// SetPolicy swaps the policy for subsequent turns.
func (m *Manager) SetPolicy(cfg policy.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = cfg
}

func (m *Manager) profile(conv types.ConversationRef) (policy.Profile, bool) {
	cfg := m.Policy()
	return cfg.ForChannel(conv.ChannelID), cfg.IsUpdating(conv.ChannelID)
}

func (m *Manager) channel(conv types.ConversationRef) (Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[strings.ToLower(conv.ChannelID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, conv.ChannelID)
	}
	return ch, nil
}

// Record returns the tracking record of a conversation.
func (m *Manager) Record(ctx context.Context, conv types.ConversationRef) (tracking.Record, error) {
	return m.tracker.Get(ctx, conv.Key())
}

// SavedMessages returns the message log of a conversation in send order.
func (m *Manager) SavedMessages(ctx context.Context, conv types.ConversationRef) ([]tracking.SavedMessage, error) {
	rec, err := m.Record(ctx, conv)
	if err != nil {
		return nil, err
	}
	return rec.Messages, nil
}

// EnableIDs makes clicks carrying ids eligible under the conversation's
// tracking style: added to the live set when tracking enabled ids, removed
// from it when tracking disabled ones.
func (m *Manager) EnableIDs(ctx context.Context, conv types.ConversationRef, ids ...dataid.DataID) (tracking.Record, error) {
	p, _ := m.profile(conv)
	return m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
		if p.Tracking == policy.TrackDisabled {
			return rec.Disable(ids...), nil
		}
		return rec.Enable(ids...), nil
	})
}

// DisableIDs is the inverse of EnableIDs.
func (m *Manager) DisableIDs(ctx context.Context, conv types.ConversationRef, ids ...dataid.DataID) (tracking.Record, error) {
	p, _ := m.profile(conv)
	return m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
		if p.Tracking == policy.TrackDisabled {
			return rec.Enable(ids...), nil
		}
		return rec.Disable(ids...), nil
	})
}

// ClearIDs empties the live sets of the given scopes, or all of them.
func (m *Manager) ClearIDs(ctx context.Context, conv types.ConversationRef, scopes ...dataid.Scope) (tracking.Record, error) {
	return m.tracker.Update(ctx, conv.Key(), func(rec *tracking.Record) (bool, error) {
		return rec.Clear(scopes...), nil
	})
}
