// Package metrics exposes prometheus collectors for the chat coordinator and
// the file service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ichat"

// Collector owns every ichat metric and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	sessions    prometheus.Gauge
	present     prometheus.Gauge
	rooms       prometheus.Gauge
	groups      prometheus.Gauge
	routed      *prometheus.CounterVec
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	fileOps     *prometheus.CounterVec
	dropped     prometheus.Counter
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live connections tracked by the coordinator.",
		}),
		present: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "present_users",
			Help:      "Distinct usernames with at least one live connection.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms currently held in memory.",
		}),
		groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "groups",
			Help:      "Active groups.",
		}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Messages routed, by target kind.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_transitions_total",
			Help:      "Presence status changes made by the sweep.",
		}, []string{"from", "to"}),
		fileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_operations_total",
			Help:      "File operations, by operation and outcome.",
		}, []string{"op", "outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_deliveries_total",
			Help:      "Deliveries dropped because a connection was closed or its buffer full.",
		}),
	}

	c.registry.MustRegister(
		c.sessions, c.present, c.rooms, c.groups,
		c.routed, c.commands, c.transitions, c.fileOps, c.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetSessions records the number of live sessions.
func (c *Collector) SetSessions(n int) { c.sessions.Set(float64(n)) }

// SetPresent records the number of present usernames.
func (c *Collector) SetPresent(n int) { c.present.Set(float64(n)) }

// SetRooms records the number of rooms.
func (c *Collector) SetRooms(n int) { c.rooms.Set(float64(n)) }

// SetGroups records the number of groups.
func (c *Collector) SetGroups(n int) { c.groups.Set(float64(n)) }

// MessageRouted counts one routed message of the given kind.
func (c *Collector) MessageRouted(kind string) { c.routed.WithLabelValues(kind).Inc() }

// CommandHandled counts one handled command.
func (c *Collector) CommandHandled(command, outcome string) {
	c.commands.WithLabelValues(command, outcome).Inc()
}

// PresenceTransition counts one status change.
func (c *Collector) PresenceTransition(from, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

// DeliveryDropped counts one dropped delivery.
func (c *Collector) DeliveryDropped() { c.dropped.Inc() }

// FileOperation counts one file operation.
func (c *Collector) FileOperation(op, outcome string) {
	c.fileOps.WithLabelValues(op, outcome).Inc()
}
