package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/ev-warranty/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink publishes each record as JSON to <prefix>/claims/<claimId>/history
// with QoS 1.
type MQTTSink struct {
	client  Publisher
	prefix  string
	timeout time.Duration
	logger  log.FieldLogger
}

// NewMQTTSink creates a sink publishing through client.
func NewMQTTSink(client Publisher, prefix string, logger log.FieldLogger) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, timeout: publishTimeout, logger: logger}
}

// Topic returns the topic records of claimID are published to.
func (s *MQTTSink) Topic(h models.ClaimHistory) string {
	return fmt.Sprintf("%s/claims/%s/history", s.prefix, h.ClaimID.Hex())
}

// Record implements Sink.
func (s *MQTTSink) Record(_ context.Context, h models.ClaimHistory) {
	payload, err := json.Marshal(h)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal claim history")
		return
	}
	topic := s.Topic(h)
	token := s.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(s.timeout) {
		s.logger.WithFields(log.Fields{"topic": topic, "timeout": s.timeout}).Warn("Timed out publishing claim history")
		return
	}
	if err := token.Error(); err != nil {
		s.logger.WithError(err).WithField("topic", topic).Error("Failed to publish claim history")
		return
	}
	s.logger.WithFields(log.Fields{"topic": topic, "action": h.Action}).Debug("Published claim history")
}

// ConnectMQTT connects to broker. The client id gets a random suffix so that
// several API replicas can share one configured id.
func ConnectMQTT(broker, clientID string, logger log.FieldLogger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("%s-%s", clientID, uuid.NewString()[:8])).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}
