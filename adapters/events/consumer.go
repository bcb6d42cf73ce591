package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// ConsumeVerified delivers every VerifiedEvent from subscriber to handle until ctx is done.
// Undecodable messages are logged and acknowledged.
func ConsumeVerified(ctx context.Context, subscriber message.Subscriber, handle func(VerifiedEvent)) error {
	messages, err := subscriber.Subscribe(ctx, VerifiedTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", VerifiedTopic, err)
	}

	go func() {
		for msg := range messages {
			var event VerifiedEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable verified event")
				msg.Ack()
				continue
			}

			handle(event)
			msg.Ack()
		}
	}()

	return nil
}
