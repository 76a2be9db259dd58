package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"smartgreenhouse/internal/models"
	"smartgreenhouse/internal/rules"
	"smartgreenhouse/internal/utils"
)

const publishTimeout = 5 * time.Second

// NewMQTTClient creates an MQTT client
func NewMQTTClient(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// Client is the part of mqtt.Client the publisher needs
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// RuleEvent is published after each committed rule mutation so the
// evaluator can refresh its associations.
type RuleEvent struct {
	Op           rules.Op     `json:"op"`
	GreenhouseID int          `json:"gh_id"`
	RuleID       int          `json:"rule_id"`
	Rule         *models.Rule `json:"rule,omitempty"`
}

// Topic returns the topic of a rule's events.
func Topic(ghID, ruleID int) string {
	return fmt.Sprintf("greenhouses/%d/rules/%d", ghID, ruleID)
}

// Publisher forwards rule changes to the broker
type Publisher struct {
	client Client
	logger *zap.Logger
}

func NewPublisher(client Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: utils.OrNop(logger)}
}

// RuleChanged publishes change with QoS 1. Deleted rules carry no body.
func (p *Publisher) RuleChanged(ctx context.Context, change rules.Change) error {
	ev := RuleEvent{
		Op:           change.Op,
		GreenhouseID: change.Rule.GreenhouseID,
		RuleID:       change.Rule.ID,
	}
	if change.Op != rules.OpDeleted {
		r := change.Rule
		ev.Rule = &r
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	topic := Topic(ev.GreenhouseID, ev.RuleID)
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("Rule event published", zap.String("topic", topic), zap.String("op", string(ev.Op)))
	return nil
}
