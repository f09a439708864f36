package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=shopfiles", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier prints a summary line and, when enabled, raises a desktop
// notification. Delivery failures are ignored.
type Notifier struct {
	printer *Printer
	sender  NotificationSender
}

// NewNotifier creates a Notifier. With desktop false, or on platforms
// without a sender, it only prints.
func NewNotifier(p *Printer, desktop bool) *Notifier {
	n := &Notifier{printer: p}
	if !desktop {
		return n
	}
	switch runtime.GOOS {
	case "linux":
		n.sender = &LinuxNotificationSender{}
	case "darwin":
		n.sender = &MacOSNotificationSender{}
	}
	return n
}

// WithSender replaces the platform sender
func (n *Notifier) WithSender(s NotificationSender) *Notifier {
	n.sender = s
	return n
}

// Success reports a finished export
func (n *Notifier) Success(title, message string) {
	n.printer.Success(fmt.Sprintf("%s: %s", title, message))
	n.send(title, message)
}

// Warning reports an export that finished with problems
func (n *Notifier) Warning(title, message string) {
	n.printer.Warning(fmt.Sprintf("%s: %s", title, message))
	n.send(title, message)
}

// Error reports a failed export
func (n *Notifier) Error(title, message string) {
	n.printer.Error(fmt.Sprintf("%s: %s", title, message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}
