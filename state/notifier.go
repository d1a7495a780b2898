package state

import "sync"

// Notice kinds
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notifier receives the user-facing outcome of state transitions.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Notice is one message collected by Notices.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Notices is a Notifier that keeps messages until they are drained.
type Notices struct {
	mu    sync.Mutex
	items []Notice
}

func (n *Notices) Success(message string) {
	n.add(NoticeSuccess, message)
}

func (n *Notices) Error(message string) {
	n.add(NoticeError, message)
}

func (n *Notices) add(kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{Kind: kind, Message: message})
}

// Drain returns the collected notices and clears them.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	items := n.items
	n.items = nil
	return items
}

// Discard is a Notifier that drops every message.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
