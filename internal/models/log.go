package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type LogEntry struct {

	// Process run the entry was recorded in
	RunID uuid.UUID `json:"run_id"`

	// Contains all the fields set by the user.
	Data logrus.Fields `json:"data,omitempty"`

	// Time at which the log entry was created
	Time time.Time `json:"time"`

	Level logrus.Level `json:"level,omitempty"`

	Message string `json:"message,omitempty"`
}

func NewLogEntry(entry *logrus.Entry) *LogEntry {
	data := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		data[key] = value
	}

	return &LogEntry{
		Data:    data,
		Time:    entry.Time,
		Level:   entry.Level,
		Message: entry.Message,
	}
}
