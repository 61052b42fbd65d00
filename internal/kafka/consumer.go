package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"restaurant-pos/internal/models"
)

// KitchenConsumer ingests status updates from the kitchen display system and
// feeds them to the order service.
type KitchenConsumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
}

func NewKitchenConsumer(brokers []string, groupID string) (*KitchenConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &KitchenConsumer{
		consumer: consumer,
		topics:   []string{"kitchen-events"},
	}, nil
}

func (c *KitchenConsumer) ConsumeKitchenEvents(ctx context.Context, handler func(*models.KitchenEvent) error) error {
	consumerHandler := &kitchenConsumerHandler{handler: handler}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, consumerHandler); err != nil {
				log.Printf("Error consuming messages: %v", err)
				return err
			}
		}
	}
}

func (c *KitchenConsumer) Close() error {
	return c.consumer.Close()
}

type kitchenConsumerHandler struct {
	handler func(*models.KitchenEvent) error
}

func (h *kitchenConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kitchenConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kitchenConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event models.KitchenEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			continue
		}

		if err := h.handler(&event); err != nil {
			log.Printf("Failed to handle kitchen event: %v", err)
			continue
		}

		session.MarkMessage(message, "")
	}

	return nil
}
