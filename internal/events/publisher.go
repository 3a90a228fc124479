// internal/events/publisher.go

// Package events broadcasts send outcomes over a fanout exchange so
// dashboards and downstream consumers can follow engine activity live.
// The publisher is optional; a nil *Publisher drops events silently.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const exchangeName = "campaign_outcomes"

// OutcomeEvent is the wire payload for one send attempt.
type OutcomeEvent struct {
	CampaignID string    `json:"campaign_id"`
	AccountID  string    `json:"account_id"`
	GroupID    string    `json:"group_id"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  zerolog.Logger
}

// NewPublisher connects to the broker and declares the outcome exchange.
func NewPublisher(url string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, log: log}, nil
}

// PublishOutcome fans out one outcome. Publishing is best-effort: broker
// failures are logged, never propagated to the send path.
func (p *Publisher) PublishOutcome(ev OutcomeEvent) {
	if p == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal outcome event")
		return
	}

	err = p.ch.Publish(
		exchangeName,
		"",    // routing key (ignored by fanout)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.log.Error().Err(err).Str("campaign_id", ev.CampaignID).Msg("publish outcome event")
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
