package app

import (
	"sync"
	"time"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient banner message.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Text      string     `json:"text"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Notices keeps the latest banner. Posting replaces the previous one and
// restarts its lifetime; expiry is evaluated lazily on read.
type Notices struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	current *Notice
}

func NewNotices(ttl time.Duration, now func() time.Time) *Notices {
	if now == nil {
		now = time.Now
	}
	return &Notices{ttl: ttl, now: now}
}

func (n *Notices) Post(kind NoticeKind, text string) Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	notice := Notice{Kind: kind, Text: text, ExpiresAt: n.now().Add(n.ttl)}
	n.current = &notice
	return notice
}

// Current returns the live banner, if any.
func (n *Notices) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	if !n.now().Before(n.current.ExpiresAt) {
		n.current = nil
		return Notice{}, false
	}
	return *n.current, true
}
