package config

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lumen-io/client/internal/models"
	"github.com/sirupsen/logrus"
)

const defaultEventBufferSize = 200

// eventLogger is a logrus hook keeping the latest events of this run so
// `lumen status` can report what happened while the session was restored.
type eventLogger struct {
	runUID uuid.UUID
	size   int

	mu     sync.RWMutex
	events []*models.LogEntry
	next   int
}

func newEventLogger(size int) *eventLogger {
	if size <= 0 {
		size = defaultEventBufferSize
	}
	return &eventLogger{
		runUID: uuid.New(),
		size:   size,
		events: make([]*models.LogEntry, 0, size),
	}
}

func (t *eventLogger) Fire(entry *logrus.Entry) error {
	logEntry := models.NewLogEntry(entry)
	logEntry.RunID = t.runUID

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.events) < t.size {
		t.events = append(t.events, logEntry)
	} else {
		t.events[t.next] = logEntry
	}
	t.next = (t.next + 1) % t.size
	return nil
}

func (t *eventLogger) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

// recent returns up to count of the latest events, oldest first. With
// levels set only those levels are considered.
func (t *eventLogger) recent(count int, levels ...logrus.Level) []*models.LogEntry {
	t.mu.RLock()
	ordered := make([]*models.LogEntry, 0, len(t.events))
	if len(t.events) < t.size {
		ordered = append(ordered, t.events...)
	} else {
		ordered = append(ordered, t.events[t.next:]...)
		ordered = append(ordered, t.events[:t.next]...)
	}
	t.mu.RUnlock()

	if len(levels) > 0 {
		filtered := ordered[:0]
		for _, entry := range ordered {
			for _, level := range levels {
				if entry.Level == level {
					filtered = append(filtered, entry)
					break
				}
			}
		}
		ordered = filtered
	}

	if count > 0 && len(ordered) > count {
		ordered = ordered[len(ordered)-count:]
	}
	return ordered
}

// GetRecentEvents returns the latest session events logged by this process.
func (c *Config) GetRecentEvents(count int) []*models.LogEntry {
	if c.logger == nil {
		return nil
	}
	return c.logger.recent(count)
}

// GetWarnings returns the latest warnings and errors only.
func (c *Config) GetWarnings(limit int) []*models.LogEntry {
	if c.logger == nil {
		return nil
	}
	return c.logger.recent(limit, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel)
}
