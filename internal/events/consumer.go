package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Evaluator is the engine surface the consumer drives
type Evaluator interface {
	Evaluate(ctx context.Context, tx *domain.Transaction) (*domain.RiskAssessment, error)
}

// TransactionConsumer consumes transaction-created events from the payment
// subsystem and runs the asynchronous deep-analysis path for each one.
type TransactionConsumer struct {
	group     sarama.ConsumerGroup
	topic     string
	evaluator Evaluator
	log       *logger.Logger
}

// NewTransactionConsumer creates the consumer group client
func NewTransactionConsumer(cfg *config.KafkaConfig, evaluator Evaluator, log *logger.Logger) (*TransactionConsumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Version = sarama.V2_8_0_0

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	return &TransactionConsumer{
		group:     group,
		topic:     cfg.TransactionTopic,
		evaluator: evaluator,
		log:       log.Named("transaction_consumer"),
	}, nil
}

// Start consumes until the context is cancelled, then closes the group
func (c *TransactionConsumer) Start(ctx context.Context) error {
	handler := &groupHandler{evaluator: c.evaluator, log: c.log}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				c.log.Error("consumer session failed", logger.ErrorField(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				c.log.Warn("consumer error", logger.ErrorField(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	wg.Wait()
	return c.group.Close()
}

// Close shuts the consumer group down
func (c *TransactionConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	evaluator Evaluator
	log       *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			var event domain.TransactionCreatedEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				h.log.Warn("malformed transaction event dropped", logger.ErrorField(err))
				session.MarkMessage(message, "")
				continue
			}
			if event.Transaction == nil {
				h.log.Warn("transaction event without payload dropped")
				session.MarkMessage(message, "")
				continue
			}

			if _, err := h.evaluator.Evaluate(session.Context(), event.Transaction); err != nil {
				h.log.Error("event evaluation failed",
					logger.StringField("transaction_id", event.Transaction.ID.String()),
					logger.ErrorField(err))
				// Poison or transient, the offset advances either way;
				// evaluations are idempotent per transaction.
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
