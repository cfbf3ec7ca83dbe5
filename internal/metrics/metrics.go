package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the gateway's Prometheus metrics. A nil *Collectors is
// valid and records nothing, which keeps library callers free of a registry.
type Collectors struct {
	registry *prometheus.Registry

	turnDecisions  *prometheus.CounterVec
	idsAssigned    *prometheus.CounterVec
	messagesSent   *prometheus.CounterVec
	storeConflicts prometheus.Counter
	channelErrors  *prometheus.CounterVec
}

func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collectors{
		registry: reg,
		turnDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardkit_turn_decisions_total",
			Help: "Incoming clicks by channel and outcome",
		}, []string{"channel", "outcome"}),
		idsAssigned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardkit_ids_assigned_total",
			Help: "Ids found on outgoing messages after assignment, by scope",
		}, []string{"scope"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardkit_messages_total",
			Help: "Outgoing message operations by channel and operation",
		}, []string{"channel", "operation"}),
		storeConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardkit_store_conflicts_total",
			Help: "Tracking writes lost to a concurrent writer",
		}),
		channelErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardkit_channel_errors_total",
			Help: "Channel calls that failed, by operation",
		}, []string{"operation"}),
	}
}

func (c *Collectors) TurnDecision(channel, outcome string) {
	if c == nil {
		return
	}
	c.turnDecisions.WithLabelValues(channel, outcome).Inc()
}

func (c *Collectors) IDsAssigned(scope string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.idsAssigned.WithLabelValues(scope).Add(float64(n))
}

func (c *Collectors) MessageOp(channel, operation string) {
	if c == nil {
		return
	}
	c.messagesSent.WithLabelValues(channel, operation).Inc()
}

// StoreConflict matches the tracking conflict hook signature.
func (c *Collectors) StoreConflict(string, int) {
	if c == nil {
		return
	}
	c.storeConflicts.Inc()
}

func (c *Collectors) ChannelError(operation string) {
	if c == nil {
		return
	}
	c.channelErrors.WithLabelValues(operation).Inc()
}

func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
