package history

import (
	"sync"
	"time"

	"github.com/rama-kairi/minios/internal/logger"
)

// Entry is one line typed at the shell prompt
type Entry struct {
	// Sequence is 1-based and never reused
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	SessionID string    `json:"session_id,omitempty"`
	User      string    `json:"user,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives a copy of every appended entry
type Sink interface {
	RecordCommand(entry Entry) error
}

// Log is the append-only command history. It spans logins: the history
// shown after a re-login still contains the lines typed before it.
type Log struct {
	entries   []Entry
	sink      Sink
	logger    *logger.Logger
	sessionID string
	user      string
	mutex     sync.RWMutex
}

// NewLog creates a new, empty history log. sink may be nil.
func NewLog(sink Sink, log *logger.Logger) *Log {
	if log == nil {
		log = logger.Nop()
	}

	return &Log{
		entries: make([]Entry, 0),
		sink:    sink,
		logger:  log.WithComponent("history"),
	}
}

// SetScope tags subsequent entries with the given session and user
func (l *Log) SetScope(sessionID, user string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.sessionID = sessionID
	l.user = user
}

// Append records text and returns the stored entry. Sink failures are
// logged and otherwise ignored.
func (l *Log) Append(text string) Entry {
	l.mutex.Lock()
	entry := Entry{
		Sequence:  len(l.entries) + 1,
		Text:      text,
		SessionID: l.sessionID,
		User:      l.user,
		Timestamp: time.Now(),
	}
	l.entries = append(l.entries, entry)
	sink := l.sink
	l.mutex.Unlock()

	if sink != nil {
		if err := sink.RecordCommand(entry); err != nil {
			l.logger.Error("Failed to journal history entry", err, map[string]interface{}{
				"sequence":   entry.Sequence,
				"session_id": entry.SessionID,
			})
		}
	}

	return entry
}

// Entries returns a copy of all entries in order
func (l *Log) Entries() []Entry {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.entries)
}

// Stats summarizes the log
type Stats struct {
	TotalCommands int            `json:"total_commands"`
	ByUser        map[string]int `json:"by_user"`
	FirstAt       time.Time      `json:"first_at,omitempty"`
	LastAt        time.Time      `json:"last_at,omitempty"`
}

// GetStats returns counts over the whole log
func (l *Log) GetStats() Stats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	stats := Stats{
		TotalCommands: len(l.entries),
		ByUser:        make(map[string]int),
	}

	for _, entry := range l.entries {
		stats.ByUser[entry.User]++
	}

	if len(l.entries) > 0 {
		stats.FirstAt = l.entries[0].Timestamp
		stats.LastAt = l.entries[len(l.entries)-1].Timestamp
	}

	return stats
}
