// Package notify raises desktop pop-ups for inbound messages.
package notify

import (
	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(title, message string) error
}

// replaced in tests
var notifyFunc = beeep.Notify

// Desktop sends notifications through the platform notification service.
type Desktop struct {
	appName string
	logger  logrus.FieldLogger
}

func NewDesktop(appName string, logger logrus.FieldLogger) *Desktop {
	return &Desktop{
		appName: appName,
		logger:  logger,
	}
}

func (d *Desktop) Notify(title, message string) error {
	if title == "" {
		title = d.appName
	}
	d.logger.
		WithField("title", title).
		Debug("sending desktop notification")

	err := notifyFunc(title, message, "")
	if err != nil {
		d.logger.WithError(err).Warn("can't send desktop notification")
	}
	return err
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(string, string) error {
	return nil
}

