package streaming

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowdesigner",
		Subsystem: "hub",
		Name:      "events_published_total",
		Help:      "Render surface callbacks published, by event type.",
	}, []string{"event_type"})

	eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowdesigner",
		Subsystem: "hub",
		Name:      "events_dropped_total",
		Help:      "Queued callbacks discarded to make room for newer ones, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(eventsPublished, eventsDropped)
}
