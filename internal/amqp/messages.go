package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage is the lightweight event published whenever a
// transaction is written. It carries only identifiers; the rollup worker
// fetches the full row from the database.
type TransactionRecordedMessage struct {
	TransactionID string    `json:"transaction_id"`
	FamilyID      string    `json:"family_id"`
	Year          int       `json:"year"`
	Month         int       `json:"month"`
	Deleted       bool      `json:"deleted,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionRecorded builds an event for a freshly written transaction.
func NewTransactionRecorded(transactionID, familyID string, year, month int) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		FamilyID:      familyID,
		Year:          year,
		Month:         month,
		Timestamp:     time.Now().UTC(),
	}
}

// NewTransactionDeleted builds an event for a soft-deleted transaction;
// the consumer rebuilds the affected month instead of applying a delta.
func NewTransactionDeleted(transactionID, familyID string, year, month int) *TransactionRecordedMessage {
	m := NewTransactionRecorded(transactionID, familyID, year, month)
	m.Deleted = true
	return m
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
