// Package notify pushes watch-cycle outcomes to chat webhooks.
package notify

import (
	"time"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every cycle
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a cycle fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when a cycle passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications when a cycle recovers from failure
	NotifyRecovery NotifyOn = "recovery"
)

// CycleSummary describes one completed run cycle for notifications.
type CycleSummary struct {
	RunID      string        `json:"run_id"`
	Trigger    string        `json:"trigger,omitempty"` // "run" or "watch"
	Pass       uint64        `json:"pass"`
	Fail       uint64        `json:"fail"`
	Error      uint64        `json:"error"`
	Duration   time.Duration `json:"duration"`
	Resolved   bool          `json:"resolved"`
	Reason     string        `json:"reason,omitempty"`
	IsRecovery bool          `json:"is_recovery,omitempty"`
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run cycle
	Notify(summary *CycleSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if the last cycle resolved
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(summary *CycleSummary) error {
	shouldNotify := false

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !summary.Resolved
	case NotifySuccess:
		shouldNotify = summary.Resolved
	case NotifyRecovery:
		// Notify if recovering from failure
		if !m.lastState && summary.Resolved {
			shouldNotify = true
			summary.IsRecovery = true
		}
		// Also notify on failure
		if !summary.Resolved {
			shouldNotify = true
		}
	}

	m.lastState = summary.Resolved

	if !shouldNotify {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
