package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventReportSubmitted is the routing key of report.submitted events.
const EventReportSubmitted = "report.submitted"

var ErrInvalidMessage = errors.New("invalid report message")

// ReportSubmittedMessage announces an archived report. It carries only
// the owner and sequence; the worker loads the report from storage.
type ReportSubmittedMessage struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportSubmittedMessage(user string, sequence int) *ReportSubmittedMessage {
	return &ReportSubmittedMessage{
		ID:        uuid.NewString(),
		User:      user,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ReportSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportSubmittedMessageFromJSON decodes and checks a message body.
func ReportSubmittedMessageFromJSON(data []byte) (*ReportSubmittedMessage, error) {
	var msg ReportSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.User == "" || msg.Sequence < 1 {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
