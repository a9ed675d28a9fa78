package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// passesTotal counts group passes by outcome
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbuild_passes_total",
		Help: "Total group passes by result",
	}, []string{"group", "result"})

	// rebuildsTotal counts rebuilds by the reason that triggered them
	rebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbuild_rebuilds_total",
		Help: "Total rebuilds by reason",
	}, []string{"group", "reason"})

	imagesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rbuild_images_removed_total",
		Help: "Total images removed by garbage collection",
	}, []string{"group"})

	passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rbuild_pass_duration_seconds",
		Help:    "Group pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
	}, []string{"group"})
)
