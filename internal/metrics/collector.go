// Package metrics exports daemon counters derived from bus events.
package metrics

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/logging"
	"github.com/batterydied/chatter/internal/outbox"
	"github.com/batterydied/chatter/internal/presence"
	"github.com/batterydied/chatter/internal/status"
	"github.com/batterydied/chatter/internal/store"
)

const namespace = "chatter"

// ViewCounter reports how many live views are open per view kind.
type ViewCounter interface {
	OpenViewsByKind() map[string]int
}

// viewGauge reads open view counts at scrape time.
type viewGauge struct {
	desc  *prometheus.Desc
	views ViewCounter
}

func (g viewGauge) Describe(ch chan<- *prometheus.Desc) { ch <- g.desc }

func (g viewGauge) Collect(ch chan<- prometheus.Metric) {
	for kind, n := range g.views.OpenViewsByKind() {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, float64(n), kind)
	}
}

// Collector turns bus traffic into prometheus series on its own registry.
type Collector struct {
	registry *prometheus.Registry
	bus      *bus.Bus
	logger   *zap.Logger

	storeChanges *prometheus.CounterVec
	presence     *prometheus.CounterVec
	repairs      *prometheus.CounterVec
	views        *prometheus.CounterVec

	sub    *bus.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector registers every series. views may be nil.
func NewCollector(b *bus.Bus, views ViewCounter, logger *zap.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bus:      b,
		logger:   logging.OrNop(logger),
		storeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_changes_total",
			Help:      "Committed document changes by collection and type.",
		}, []string{"collection", "type"}),
		presence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_flips_total",
			Help:      "Aggregate presence flips by resulting state.",
		}, []string{"state"}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "touch_repairs_total",
			Help:      "Pending touch outcomes.",
		}, []string{"result"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_transitions_total",
			Help:      "Live view health transitions by target state.",
		}, []string{"to"}),
	}
	c.registry.MustRegister(c.storeChanges, c.presence, c.repairs, c.views)

	if views != nil {
		c.registry.MustRegister(viewGauge{
			desc: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "open_views"),
				"Live views currently open.", []string{"kind"}, nil),
			views: views,
		})
	}
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metrics_dropped_events_total",
		Help:      "Bus events the collector could not keep up with.",
	}, c.dropped))
	return c
}

// Registry exposes the collector's registry for serving.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Start subscribes to the bus. It is a no-op without a bus.
func (c *Collector) Start(ctx context.Context) {
	if c.bus == nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.sub = c.bus.Subscribe("", 1024)
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop unsubscribes and waits for the loop to exit.
func (c *Collector) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.sub.Close()
	c.wg.Wait()
}

func (c *Collector) dropped() float64 {
	if c.sub == nil {
		return 0
	}
	return float64(c.sub.Dropped())
}

func (c *Collector) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.sub.C():
			c.Observe(evt)
		}
	}
}

// Observe records one event.
func (c *Collector) Observe(evt bus.Event) {
	switch {
	case strings.HasPrefix(evt.Kind, bus.StorePrefix):
		batch, ok := evt.Payload.(store.Batch)
		if !ok {
			return
		}
		for _, ch := range batch.Changes {
			c.storeChanges.WithLabelValues(string(batch.Collection), string(ch.Type)).Inc()
		}
	case evt.Kind == presence.EventChanged:
		change, ok := evt.Payload.(presence.Change)
		if !ok {
			return
		}
		state := "offline"
		if change.Online {
			state = "online"
		}
		c.presence.WithLabelValues(state).Inc()
	case evt.Kind == outbox.EventRepaired:
		c.repairs.WithLabelValues("repaired").Inc()
	case evt.Kind == outbox.EventFailed:
		c.repairs.WithLabelValues("failed").Inc()
	case evt.Kind == outbox.EventDropped:
		c.repairs.WithLabelValues("dropped").Inc()
	case evt.Kind == status.EventKind:
		sc, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return
		}
		c.views.WithLabelValues(string(sc.To)).Inc()
	default:
		c.logger.Debug("metrics: ignoring event", zap.String("kind", evt.Kind))
	}
}
