// storefront/cart/notifier.go

package cart

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Level is the severity of a user-facing notification.
type Level string

const LevelSuccess Level = "success"

// Notification is a short confirmation message meant for the shopper.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	ItemID  ID     `json:"item_id"`
}

// Notifier delivers notifications to whatever shows them to the shopper.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) {
	l.Log.WithFields(logrus.Fields{
		"level":   n.Level,
		"item_id": n.ItemID,
	}).Info(n.Message)
}
