package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts successfully ingested objects.
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securedrive_uploads_total",
		Help: "Number of objects successfully ingested.",
	})
	// UploadedBytes counts bytes written to the object store.
	UploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securedrive_uploaded_bytes_total",
		Help: "Total bytes successfully ingested.",
	})
	// DownloadsTotal counts served downloads.
	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securedrive_downloads_total",
		Help: "Number of object downloads served.",
	})
	// DownloadedBytes counts bytes relayed to download callers.
	DownloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "securedrive_downloaded_bytes_total",
		Help: "Total bytes relayed to download callers.",
	})
)

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
