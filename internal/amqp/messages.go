package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TableChangeMessage tells other processes sharing the database which tables
// changed, so they can invalidate their caches. It carries no record data;
// receivers re-read the store.
type TableChangeMessage struct {
	Origin    string    `json:"origin"`
	Tables    []string  `json:"tables"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTableChangeMessage creates a message stamped with the current time.
func NewTableChangeMessage(origin string, tables []string) *TableChangeMessage {
	return &TableChangeMessage{
		Origin:    origin,
		Tables:    append([]string(nil), tables...),
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TableChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TableChangeMessageFromJSON parses a message and rejects ones without tables.
func TableChangeMessageFromJSON(data []byte) (*TableChangeMessage, error) {
	var msg TableChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Tables) == 0 {
		return nil, errors.New("table change message without tables")
	}
	return &msg, nil
}
