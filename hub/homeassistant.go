// Package hub publishes presence to Home Assistant over its REST API or MQTT.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/models"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected hub response status")
	nonSlugChars        = regexp.MustCompile(`[^a-z0-9]+`)
)

// HTTPClient interface for mocking
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ConnectionStatus reports whether the last exchange with the hub succeeded.
type ConnectionStatus interface {
	IsConnected() bool
}

// HomeAssistant publishes binary sensors, a people counter sensor and bus events.
type HomeAssistant struct {
	logger    *zap.SugaredLogger
	client    HTTPClient
	baseURL   string
	token     string
	prefix    string
	connected atomic.Bool
}

func NewHomeAssistant(logger *zap.SugaredLogger, cfg *config.HubConfig) *HomeAssistant {
	return &HomeAssistant{
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		prefix:  Slug(cfg.EntityPrefix),
	}
}

// Slug converts a device name into the lower case entity id form Home Assistant accepts.
func Slug(name string) string {
	return strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

func (h *HomeAssistant) entityID(domain, name string) string {
	if h.prefix == "" {
		return domain + "." + Slug(name)
	}
	return domain + "." + h.prefix + "_" + Slug(name)
}

type stateBody struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// PublishDevice sets binary_sensor.<prefix>_<name>.
func (h *HomeAssistant) PublishDevice(ctx context.Context, name string, present bool) error {
	return h.post(ctx, "/api/states/"+h.entityID("binary_sensor", name), stateBody{
		State: onOff(present),
		Attributes: map[string]any{
			"friendly_name": name,
			"device_class":  "presence",
		},
	})
}

// PublishGroup sets the people counter and the everybody/nobody/anybody binary sensors.
func (h *HomeAssistant) PublishGroup(ctx context.Context, agg models.GroupAggregate) error {
	var errs []error
	errs = append(errs, h.post(ctx, "/api/states/"+h.entityID("sensor", "people_home"), stateBody{
		State: fmt.Sprint(agg.PresentCount),
		Attributes: map[string]any{
			"friendly_name":       "People home",
			"unit_of_measurement": "people",
			"total_count":         agg.TotalCount,
			"present_names":       agg.PresentNames,
		},
	}))
	for _, s := range []struct {
		name  string
		value bool
	}{
		{"everybody_home", agg.EverybodyHome},
		{"nobody_home", agg.NobodyHome},
		{"anybody_home", agg.AnybodyHome},
	} {
		errs = append(errs, h.post(ctx, "/api/states/"+h.entityID("binary_sensor", s.name), stateBody{
			State: onOff(s.value),
			Attributes: map[string]any{
				"friendly_name": strings.ReplaceAll(s.name, "_", " "),
				"device_class":  "occupancy",
			},
		}))
	}
	return errors.Join(errs...)
}

// PublishEvent fires <prefix>_<event_type> on the Home Assistant event bus.
func (h *HomeAssistant) PublishEvent(ctx context.Context, event models.Event) error {
	eventType := string(event.Type)
	if h.prefix != "" {
		eventType = h.prefix + "_" + eventType
	}
	return h.post(ctx, "/api/events/"+eventType, event.Payload)
}

func (h *HomeAssistant) IsConnected() bool {
	return h.connected.Load()
}

func (h *HomeAssistant) post(ctx context.Context, path string, body any) error {
	err := h.doPost(ctx, path, body)
	h.connected.Store(err == nil)
	return err
}

func (h *HomeAssistant) doPost(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal hub request for %v: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to create hub request for %v: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub request %v failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %v %v: %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	h.logger.Debugf("Published %v", path)
	return nil
}
