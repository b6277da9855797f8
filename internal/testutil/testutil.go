// AngelaMos | 2026
// testutil.go

package testutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/carterperez-dev/member-portal/internal/notify"
)

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// RecordingSender keeps every message. When Fail is set, Send records
// the message and then returns an error.
type RecordingSender struct {
	mu       sync.Mutex
	messages []notify.Message
	Fail     bool
}

func (s *RecordingSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	if s.Fail {
		return errors.New("smtp unavailable")
	}
	return nil
}

func (s *RecordingSender) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.messages...)
}

func (s *RecordingSender) Last() (notify.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return notify.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Epoch is a fixed start instant for tests.
var Epoch = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
