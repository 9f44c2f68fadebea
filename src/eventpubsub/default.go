package eventpubsub

import (
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

var bus EventBus.Bus

func Init() {
	bus = EventBus.New()
}

func Publish(topic string, event interface{}) {
	bus.Publish(topic, event)
}

func Subscribe(topic string, callbackFn interface{}) error {
	if err := bus.SubscribeAsync(topic, callbackFn, false); err != nil {
		return err
	}

	log.Infof("Subscribed to topic %s", topic)
	return nil
}

func Unsubscribe(topic string, callbackFn interface{}) error {
	return bus.Unsubscribe(topic, callbackFn)
}

// PublishError logs the error and republishes it on the error topic for
// monitoring subscribers.
func PublishError(publisherName string, err error) {
	log.Errorf("%s: %v", publisherName, err)
	bus.Publish(Error, err)
}

// WaitAsync blocks until all in-flight async callbacks have returned. Used by
// tests and graceful shutdown.
func WaitAsync() {
	bus.WaitAsync()
}
