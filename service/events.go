package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

type Event interface {
	Type() string
	Key() string
}

// EventDispatcher receives domain events after the change they describe is stored.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// NopDispatcher drops every event.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) error { return nil }

// LogDispatcher writes events to the log instead of a broker.
type LogDispatcher struct {
	Log logrus.FieldLogger
}

func (d LogDispatcher) Dispatch(_ context.Context, event Event) error {
	d.Log.WithFields(logrus.Fields{"event": event.Type(), "key": event.Key()}).Debug("domain event")
	return nil
}

// emitter forwards events and logs dispatch failures; a failed dispatch never
// fails the operation that produced the event.
type emitter struct {
	dispatcher EventDispatcher
	log        logrus.FieldLogger
}

func (e emitter) emit(ctx context.Context, events ...Event) {
	for _, event := range events {
		if err := e.dispatcher.Dispatch(ctx, event); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"event": event.Type(),
				"key":   event.Key(),
			}).Error("failed to dispatch event")
		}
	}
}
