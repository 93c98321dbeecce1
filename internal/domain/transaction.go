package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies the monetary operation being screened
type TransactionType string

const (
	TransactionPurchase   TransactionType = "PURCHASE"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTransfer   TransactionType = "TRANSFER"
	TransactionRefund     TransactionType = "REFUND"
)

// GeoPoint is a merchant geolocation used for travel-speed checks
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MerchantInfo describes the merchant side of a transaction
type MerchantInfo struct {
	MerchantID string    `json:"merchant_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Category   string    `json:"category"`       // GROCERY, RESTAURANT, GAS, RETAIL, ...
	Type       string    `json:"type,omitempty"` // POS, ATM, ONLINE
	Country    string    `json:"country,omitempty"`
	State      string    `json:"state,omitempty"`
	Location   *GeoPoint `json:"location,omitempty"`
}

// Transaction is the event received from the payment subsystem.
// The engine only reads it; lifecycle state lives in MonitoringStatus.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	ProgramType string          `json:"program_type"` // benefit/program classifier
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TransactionType `json:"type"`
	Merchant    MerchantInfo    `json:"merchant"`
	Timestamp   time.Time       `json:"timestamp"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// TransactionCreatedEvent is the Kafka event received from the payment service
type TransactionCreatedEvent struct {
	EventID     uuid.UUID    `json:"event_id"`
	EventType   string       `json:"event_type"`
	Timestamp   time.Time    `json:"timestamp"`
	Transaction *Transaction `json:"payload"`
}

// Validate checks that every field the detectors require is present.
// A transaction failing validation is rejected before scoring.
func (t *Transaction) Validate() error {
	switch {
	case t.ID == uuid.Nil:
		return invalidTransaction("missing transaction id")
	case t.AccountID == uuid.Nil:
		return invalidTransaction("missing account id")
	case t.Amount <= 0:
		return invalidTransaction("amount must be positive")
	case t.Currency == "":
		return invalidTransaction("missing currency")
	case t.Type == "":
		return invalidTransaction("missing transaction type")
	case t.Timestamp.IsZero():
		return invalidTransaction("missing timestamp")
	}
	return nil
}

// Hour returns the transaction's hour of day (0-23)
func (t *Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// IsCashOut returns true for withdrawal-like transactions
func (t *Transaction) IsCashOut() bool {
	return t.Type == TransactionWithdrawal || t.Merchant.Type == "ATM"
}

// IsRoundAmount returns true when the amount is a multiple of ten
func (t *Transaction) IsRoundAmount() bool {
	cents := int64(t.Amount*100 + 0.5)
	return cents%1000 == 0
}
