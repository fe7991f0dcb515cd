// Package notify sends desktop notifications through the fyne application.
package notify

import "fyne.io/fyne/v2"

// AppNotifier delivers notifications via the running fyne app. Best-effort:
// with no app attached it silently does nothing.
type AppNotifier struct {
	app fyne.App
}

// NewAppNotifier creates a notifier bound to app.
func NewAppNotifier(app fyne.App) *AppNotifier {
	return &AppNotifier{app: app}
}

// Send shows a desktop notification.
func (notifier *AppNotifier) Send(title, body string) {
	if notifier.app == nil {
		return
	}
	notifier.app.SendNotification(fyne.NewNotification(title, body))
}

// Request reports whether notifications can be delivered. Desktop targets
// need no explicit permission grant, so this only checks for an app.
func (notifier *AppNotifier) Request() bool {
	return notifier.app != nil
}
