package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/garant/ports"
)

// VerifiedTopic carries one event per successful sign-in
const VerifiedTopic = "garant.auth.verified"

// VerifiedEvent represents a successful sign-in
type VerifiedEvent struct {
	Address    string    `json:"address"`
	ChainID    int64     `json:"chain_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     VerifiedTopic,
	}
}

// PublishVerified publishes a verified event
func (p *WatermillPublisher) PublishVerified(ctx context.Context, address string, chainID int64, at time.Time) error {
	event := VerifiedEvent{
		Address:    address,
		ChainID:    chainID,
		VerifiedAt: at.UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
