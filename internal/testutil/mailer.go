package testutil

import (
	"context"
	"sync"
)

// Mailer stands in for the SMTP-backed email service.
type Mailer struct {
	Dispatcher

	mu      sync.Mutex
	Resets  []Message
	Welcome []Message
	Err     error
}

func (m *Mailer) SendPasswordResetEmail(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Resets = append(m.Resets, Message{To: to, Body: link})
	return nil
}

func (m *Mailer) SendWelcomeEmail(_ context.Context, to, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Welcome = append(m.Welcome, Message{To: to, Body: name})
	return nil
}

func (m *Mailer) LastReset() Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Resets) == 0 {
		return Message{}
	}
	return m.Resets[len(m.Resets)-1]
}
