package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"relloyd/bluepresence/config"
	"relloyd/bluepresence/models"
)

var publishTimeout = 5 * time.Second

// mqttClient is the subset of paho.Client used here.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTT publishes retained state topics and non-retained event topics:
//
//	<prefix>/device/<slug>/state  home|not_home (retained)
//	<prefix>/group/state          GroupAggregate JSON (retained)
//	<prefix>/event/<event_type>   event payload JSON
type MQTT struct {
	logger *zap.SugaredLogger
	client mqttClient
	prefix string
}

func NewMQTT(logger *zap.SugaredLogger, cfg *config.MQTTConfig) (*MQTT, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/availability", "offline", 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			logger.Infof("Connected to MQTT broker %v", cfg.Broker)
			c.Publish(cfg.TopicPrefix+"/availability", 1, true, "online")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnf("Lost connection to MQTT broker: %v", err)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry keeps trying in the background.
		logger.Warnf("MQTT broker %v not reachable yet, retrying in the background", cfg.Broker)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return newMQTT(logger, client, cfg.TopicPrefix), nil
}

func newMQTT(logger *zap.SugaredLogger, client mqttClient, prefix string) *MQTT {
	return &MQTT{logger: logger, client: client, prefix: prefix}
}

func presenceState(present bool) string {
	if present {
		return "home"
	}
	return "not_home"
}

func (m *MQTT) PublishDevice(ctx context.Context, name string, present bool) error {
	return m.publish(ctx, m.prefix+"/device/"+Slug(name)+"/state", 1, true, []byte(presenceState(present)))
}

func (m *MQTT) PublishGroup(ctx context.Context, agg models.GroupAggregate) error {
	b, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("format group payload: %w", err)
	}
	return m.publish(ctx, m.prefix+"/group/state", 1, true, b)
}

func (m *MQTT) PublishEvent(ctx context.Context, event models.Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return m.publish(ctx, m.prefix+"/event/"+string(event.Type), 0, false, b)
}

func (m *MQTT) IsConnected() bool {
	return m.client.IsConnectionOpen()
}

// Close publishes nothing further and disconnects with a 1 second quiesce.
func (m *MQTT) Close() error {
	m.client.Disconnect(1000)
	return nil
}

func (m *MQTT) publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %v: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %v: %w", topic, err)
	}
	m.logger.Debugf("Published %v", topic)
	return nil
}
