// Package notify carries user-facing outcome notices out of the core.
package notify

import (
	"sync"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level       `json:"level"`
	Kind    apperr.Kind `json:"kind,omitempty"`
	Message string      `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

func Success(msg string) Notice {
	return Notice{Level: LevelSuccess, Message: msg}
}

// Failure builds an error notice. The message is picked per failure class so
// each class surfaces distinctly; fallback is used for unclassified errors.
func Failure(err error, fallback string) Notice {
	kind := apperr.KindOf(err)
	msg := fallback
	switch kind {
	case apperr.KindValidation:
		msg = "Please check your input: " + rootMessage(err)
	case apperr.KindAssetUpload:
		msg = "Failed to upload image."
	case apperr.KindPermission:
		msg = "You are not allowed to do that."
	case apperr.KindNetwork:
		msg = "Network error, please try again."
	case apperr.KindConflict:
		msg = fallback + " (conflict)"
	case apperr.KindNotFound:
		msg = "That post no longer exists."
	case apperr.KindInvalidCredentials:
		msg = "Login failed. Please check your credentials."
	}
	return Notice{Level: LevelError, Kind: kind, Message: msg}
}

func rootMessage(err error) string {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			return err.Error()
		}
		err = u.Unwrap()
	}
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(Notice) {}

// Queue buffers notices until they are drained.
type Queue struct {
	mu      sync.Mutex
	notices []Notice
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, n)
}

func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.notices
	q.notices = nil
	return out
}

// Log writes notices to a zerolog logger.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(n Notice) {
	ev := l.Logger.Info()
	if n.Level == LevelError {
		ev = l.Logger.Warn().Stringer("kind", n.Kind)
	}
	ev.Msg(n.Message)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, nn := range m {
		nn.Notify(n)
	}
}
