package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	downloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_downloads_total",
		Help: "Recorded resource downloads",
	})

	bookmarkOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_bookmark_operations_total",
		Help: "Bookmark operations by kind (add, remove, duplicate)",
	}, []string{"op"})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_resource_queries_total",
		Help: "Resource listing and search queries",
	}, []string{"kind"})

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "library_upload_size_bytes",
		Help:    "Size of uploaded files",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
	})
)
