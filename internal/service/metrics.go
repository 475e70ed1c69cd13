package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	photosUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_photos_uploaded_total",
		Help: "Photos stored, counting each member of an uploaded archive",
	})

	deleteHookFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_delete_hook_failures_total",
		Help: "Post-delete hooks that returned an error",
	})
)
