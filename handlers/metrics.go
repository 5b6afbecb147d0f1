package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesServed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ticketchat",
		Name:      "history_pages_served_total",
		Help:      "History pages returned by the messages endpoint.",
	})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ticketchat",
		Name:      "events_published_total",
		Help:      "Live events published to channel subscribers, by channel kind.",
	}, []string{"kind"})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ticketchat",
		Name:      "websocket_clients",
		Help:      "Currently connected WebSocket clients.",
	})
)
