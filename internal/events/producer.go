package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Producer publishes alert, action and audit events. It also backs the
// wallet, notification and review-queue collaborators: side-effect requests
// leave this service as events on the actions topic and are fulfilled by
// the owning subsystems.
type Producer struct {
	producer sarama.SyncProducer
	cfg      *config.KafkaConfig
	log      *logger.Logger
}

// NewProducer creates the sync event producer
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		cfg:      cfg,
		log:      log.Named("event_producer"),
	}, nil
}

// Close shuts the underlying producer down
func (p *Producer) Close() error {
	return p.producer.Close()
}

// AlertEvent is the wire form of a raised alert
type AlertEvent struct {
	EventID   uuid.UUID     `json:"event_id"`
	EventType string        `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	Alert     *domain.Alert `json:"payload"`
}

// ActionEvent is the wire form of a side-effect request
type ActionEvent struct {
	EventID       uuid.UUID        `json:"event_id"`
	EventType     string           `json:"event_type"`
	Timestamp     time.Time        `json:"timestamp"`
	TransactionID uuid.UUID        `json:"transaction_id"`
	Action        domain.Action    `json:"action"`
	Priority      domain.RiskLevel `json:"priority,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	TotalScore    float64          `json:"total_score,omitempty"`
}

// AuditEvent is the wire form of a completed assessment
type AuditEvent struct {
	EventID    uuid.UUID              `json:"event_id"`
	EventType  string                 `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	Assessment *domain.RiskAssessment `json:"payload"`
}

// PublishAlert emits a raised alert on the alerts topic
func (p *Producer) PublishAlert(_ context.Context, alert *domain.Alert) error {
	return p.send(p.cfg.AlertsTopic, alert.TransactionID.String(), AlertEvent{
		EventID:   uuid.New(),
		EventType: "risk.alert.created",
		Timestamp: time.Now().UTC(),
		Alert:     alert,
	})
}

// PublishAction emits the chosen action on the actions topic
func (p *Producer) PublishAction(_ context.Context, transactionID uuid.UUID, action domain.Action, totalScore float64) error {
	return p.send(p.cfg.ActionsTopic, transactionID.String(), ActionEvent{
		EventID:       uuid.New(),
		EventType:     "risk.action.decided",
		Timestamp:     time.Now().UTC(),
		TransactionID: transactionID,
		Action:        action,
		TotalScore:    totalScore,
	})
}

// PublishAudit emits the full assessment on the audit topic
func (p *Producer) PublishAudit(_ context.Context, a *domain.RiskAssessment) error {
	return p.send(p.cfg.AuditTopic, a.TransactionID.String(), AuditEvent{
		EventID:    uuid.New(),
		EventType:  "risk.assessment.completed",
		Timestamp:  time.Now().UTC(),
		Assessment: a,
	})
}

// PublishDailyReport emits the scheduler's daily aggregates on the audit topic
func (p *Producer) PublishDailyReport(_ context.Context, r *domain.DailyReport) error {
	return p.send(p.cfg.AuditTopic, r.Date.Format("2006-01-02"), map[string]interface{}{
		"event_id":   uuid.New(),
		"event_type": "risk.report.daily",
		"timestamp":  time.Now().UTC(),
		"payload":    r,
	})
}

// Hold requests a wallet hold for the transaction
func (p *Producer) Hold(_ context.Context, transactionID uuid.UUID, reason string) error {
	return p.sendWalletRequest(transactionID, "wallet.hold.requested", domain.ActionHold, reason)
}

// Block requests a wallet block for the transaction
func (p *Producer) Block(_ context.Context, transactionID uuid.UUID, reason string) error {
	return p.sendWalletRequest(transactionID, "wallet.block.requested", domain.ActionBlock, reason)
}

// CreateReviewTask requests a manual review task for a held transaction
func (p *Producer) CreateReviewTask(_ context.Context, transactionID uuid.UUID, priority domain.RiskLevel, reason string) error {
	return p.send(p.cfg.ActionsTopic, transactionID.String(), ActionEvent{
		EventID:       uuid.New(),
		EventType:     "review.task.requested",
		Timestamp:     time.Now().UTC(),
		TransactionID: transactionID,
		Action:        domain.ActionHold,
		Priority:      priority,
		Reason:        reason,
	})
}

// Notify routes a HIGH or CRITICAL alert to the notification collaborator
func (p *Producer) Notify(_ context.Context, alert *domain.Alert) error {
	return p.send(p.cfg.AlertsTopic, alert.TransactionID.String(), AlertEvent{
		EventID:   uuid.New(),
		EventType: "risk.alert.notify",
		Timestamp: time.Now().UTC(),
		Alert:     alert,
	})
}

func (p *Producer) sendWalletRequest(transactionID uuid.UUID, eventType string, action domain.Action, reason string) error {
	return p.send(p.cfg.ActionsTopic, transactionID.String(), ActionEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		TransactionID: transactionID,
		Action:        action,
		Reason:        reason,
	})
}

func (p *Producer) send(topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	p.log.Debug("event published",
		logger.StringField("topic", topic),
		logger.IntField("partition", int(partition)),
		logger.IntField("offset", int(offset)))
	return nil
}
