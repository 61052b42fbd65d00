package kafka

import (
	"github.com/IBM/sarama"

	"restaurant-pos/internal/models"
)

// KitchenConsumerHandler is exported for testing purposes
type KitchenConsumerHandler struct {
	Handler func(*models.KitchenEvent) error
}

// ConsumeClaim processes Kafka messages
func (h *KitchenConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return (&kitchenConsumerHandler{
		handler: h.Handler,
	}).ConsumeClaim(session, claim)
}

// Setup is called before consuming starts
func (h *KitchenConsumerHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called after consuming ends
func (h *KitchenConsumerHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	return nil
}
