package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"relloyd/bluepresence/config"
	"relloyd/bluepresence/models"
)

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"ago": formatAgo,
}).ParseFS(embeddedFiles, "templates/index.html"))

type TemplateData struct {
	BuildTime    string
	BuildVersion string
	StartTime    string
	Uptime       string
	Now          time.Time
	Healthy      bool
	Status       models.HealthState
	LastScan     time.Time
	ErrorCount   int
	Recoveries   int
	HubConnected bool
	Devices      []models.DeviceState
	Aggregate    models.GroupAggregate
}

func (h *Handler) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	s := h.status.Snapshot()
	td := TemplateData{
		BuildTime:    config.BuildTime,
		BuildVersion: config.BuildVersion,
		StartTime:    s.StartTime.Format(time.RFC822),
		Uptime:       formatDuration(s.Uptime()),
		Now:          s.Now,
		Healthy:      s.Health(h.maxScanAge, h.maxErrorCount).Healthy,
		Status:       s.Status,
		LastScan:     s.LastScan,
		ErrorCount:   s.ErrorCount,
		Recoveries:   s.Recoveries,
		HubConnected: s.HubConnected,
		Devices:      s.Devices,
		Aggregate:    s.Aggregate,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, td); err != nil {
		h.logger.Errorf("Error rendering status page: %v", err)
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
	}
}

// healthHandler responds 200 when healthy and 503 otherwise, with the same JSON body.
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	health := h.status.Snapshot().Health(h.maxScanAge, h.maxErrorCount)
	code := http.StatusOK
	if !health.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		h.logger.Errorf("Error encoding health response: %v", err)
	}
}

// devicesHandler returns per-device presence in registry order plus the group aggregate.
func (h *Handler) devicesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	s := h.status.Snapshot()
	devices := s.Devices
	if devices == nil {
		devices = []models.DeviceState{}
	}
	resp := struct {
		Devices   []models.DeviceState  `json:"devices"`
		Aggregate models.GroupAggregate `json:"aggregate"`
	}{devices, s.Aggregate}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Errorf("Error encoding devices response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
