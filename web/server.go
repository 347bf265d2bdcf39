package web

import (
	"embed"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/status"
)

//go:embed templates/*
var embeddedFiles embed.FS

// StatusSource returns the current daemon state.
type StatusSource interface {
	Snapshot() status.Snapshot
}

type Handler struct {
	logger        *zap.SugaredLogger
	status        StatusSource
	maxScanAge    time.Duration
	maxErrorCount int
}

func NewServer(logger *zap.SugaredLogger, src StatusSource, cfg *config.WebConfig) *http.Server {
	h := &Handler{logger: logger, status: src, maxScanAge: cfg.MaxScanAge, maxErrorCount: cfg.MaxErrorCount}
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.rootHandler)
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/devices", h.devicesHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebPort),
		Handler:           mux,
		ReadTimeout:       10 * time.Second, // Maximum duration for reading the request body
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers before timing out
		WriteTimeout:      10 * time.Second, // Maximum duration for writing the response
		IdleTimeout:       30 * time.Second, // Maximum amount of time to keep idle connections alive
		MaxHeaderBytes:    1 << 20,          // Maximum size of request headers (1 MB)
	}
}

// formatDuration converts a time.Duration to a string showing days, hours, and minutes
func formatDuration(d time.Duration) string {
	days := d / (24 * time.Hour)
	d -= days * (24 * time.Hour)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	return fmt.Sprintf("%dd %02dh %02dm", days, hours, minutes)
}

// formatAgo renders how long ago t was relative to now, or "never" for the zero time.
func formatAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return formatDuration(d) + " ago"
}
