package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Category of a failure, following the load / validation / mutation taxonomy.
type Category string

const (
	CategoryLoad       Category = "load"
	CategoryValidation Category = "validation"
	CategoryMutation   Category = "mutation"
)

// Notice is a user-visible failure signal
type Notice struct {
	Category Category  `json:"category"`
	Op       string    `json:"op"`
	Message  string    `json:"message"`
	Err      string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier delivers notices to the operator
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	l.logger.Warn(n.Message,
		zap.String("category", string(n.Category)),
		zap.String("op", n.Op),
		zap.String("error", n.Err),
	)
}

// Inbox keeps the most recent notices for the console to display.
type Inbox struct {
	mu      sync.Mutex
	notices []Notice
	limit   int
}

// NewInbox creates an inbox holding at most limit notices.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

func (in *Inbox) Notify(ctx context.Context, n Notice) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notices = append(in.notices, n)
	if over := len(in.notices) - in.limit; over > 0 {
		in.notices = append([]Notice(nil), in.notices[over:]...)
	}
}

// Drain returns and forgets all pending notices, oldest first.
func (in *Inbox) Drain() []Notice {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.notices
	in.notices = nil
	return out
}

// Fanout sends each notice to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notice) {
	for _, nt := range f {
		nt.Notify(ctx, n)
	}
}
