package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reasons carried by DatasetChangedMessage.
const (
	ReasonCreated            = "created"
	ReasonImported           = "imported"
	ReasonTransactionSaved   = "transaction_saved"
	ReasonTransactionDeleted = "transaction_deleted"
)

// DatasetChangedMessage announces that a dataset's stored records changed.
// It carries no transaction data; consumers re-read the dataset from storage.
type DatasetChangedMessage struct {
	DatasetID string    `json:"datasetId"`
	Owner     string    `json:"owner"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDatasetChangedMessage stamps a change notification with the current time.
func NewDatasetChangedMessage(datasetID, owner, reason string) *DatasetChangedMessage {
	return &DatasetChangedMessage{
		DatasetID: datasetID,
		Owner:     owner,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DatasetChangedMessageFromJSON decodes a message and requires a dataset id.
func DatasetChangedMessageFromJSON(data []byte) (*DatasetChangedMessage, error) {
	var msg DatasetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.DatasetID == "" {
		return nil, fmt.Errorf("message without datasetId")
	}
	return &msg, nil
}
