package notify

import (
	"encoding/json"
	"fmt"

	"github.com/lmoreno87/advmatch/core/events"
	"github.com/lmoreno87/advmatch/infra/logger"
	"github.com/lmoreno87/advmatch/internal/eventbus"
)

// Publisher is the raw publish surface the bridge writes through.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Bridge republishes engine events onto MQTT topics so external systems can
// follow request lifecycles without polling the API.
type Bridge struct {
	bus    eventbus.EventBus
	pub    Publisher
	prefix string
	log    logger.Logger

	sub  <-chan eventbus.Event
	done chan struct{}
}

// NewBridge subscribes to the bus and starts forwarding. Close releases the
// subscription.
func NewBridge(bus eventbus.EventBus, pub Publisher, topicPrefix string, log logger.Logger) *Bridge {
	if topicPrefix == "" {
		topicPrefix = "advmatch"
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	b := &Bridge{
		bus:    bus,
		pub:    pub,
		prefix: topicPrefix,
		log:    log,
		sub:    bus.Subscribe(),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bridge) run() {
	defer close(b.done)
	for e := range b.sub {
		kind, ok := eventKind(e)
		if !ok {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			b.log.Errorf("encode %s event: %v", kind, err)
			continue
		}
		topic := fmt.Sprintf("%s/events/%s", b.prefix, kind)
		if err := b.pub.Publish(topic, payload); err != nil {
			b.log.Errorf("publish %s event: %v", kind, err)
		}
	}
}

func eventKind(e eventbus.Event) (string, bool) {
	switch e.(type) {
	case events.TierNotified:
		return "tier_notified", true
	case events.Escalated:
		return "escalated", true
	case events.EvaluationCompleted:
		return "evaluation_completed", true
	case events.ClosedNoOffers:
		return "closed_no_offers", true
	case events.OfferRejected:
		return "offer_rejected", true
	default:
		return "", false
	}
}

// Close unsubscribes from the bus and waits for the forwarding loop to stop.
func (b *Bridge) Close() {
	b.bus.Unsubscribe(b.sub)
	<-b.done
}
