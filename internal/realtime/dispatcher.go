package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Dispatcher fans events out to the subscribers of a room.
type Dispatcher struct {
	registry *Registry
	logger   *logrus.Logger
	metrics  *Metrics
}

// NewDispatcher creates a Dispatcher over registry. metrics may be nil.
func NewDispatcher(registry *Registry, logger *logrus.Logger, metrics *Metrics) *Dispatcher {
	if metrics != nil {
		registry.onChange = metrics.observeRegistry
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: metrics}
}

// Registry returns the registry the dispatcher publishes into.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Subscribe registers sub under roomID.
func (d *Dispatcher) Subscribe(roomID string, sub Subscriber) {
	d.registry.Subscribe(roomID, sub)
	d.logger.WithFields(logrus.Fields{
		"room":          roomID,
		"subscriber_id": sub.ID(),
	}).Debug("Subscriber joined room")
}

// Unsubscribe removes sub from roomID.
func (d *Dispatcher) Unsubscribe(roomID string, sub Subscriber) {
	if d.registry.Unsubscribe(roomID, sub) {
		d.logger.WithFields(logrus.Fields{
			"room":          roomID,
			"subscriber_id": sub.ID(),
		}).Debug("Subscriber left room")
	}
}

// Publish delivers evt to every subscriber of roomID as of the call. A
// subscriber that fails is dropped from the room and closed; failures never
// reach the caller. Publishing to an unknown room does nothing.
func (d *Dispatcher) Publish(roomID string, evt Event) {
	r := d.registry.lookup(roomID)
	if r == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		d.logger.WithError(err).WithField("room", roomID).Error("failed to encode event")
		return
	}

	var (
		errs   *multierror.Error
		failed []Subscriber
	)

	r.publishMu.Lock()
	members := r.snapshot()
	for _, sub := range members {
		if err := sub.Send(payload); err != nil {
			failed = append(failed, sub)
			errs = multierror.Append(errs, fmt.Errorf("subscriber %s: %w", sub.ID(), err))
		}
	}
	r.publishMu.Unlock()

	d.metrics.published(evt.Type, len(members)-len(failed))

	if len(failed) == 0 {
		return
	}

	for _, sub := range failed {
		d.registry.Unsubscribe(roomID, sub)
		_ = sub.Close()
	}
	d.metrics.pruned(len(failed))

	d.logger.WithFields(logrus.Fields{
		"room":   roomID,
		"event":  evt.Type,
		"pruned": len(failed),
	}).WithError(errs.ErrorOrNil()).Warn("Dropped unreachable subscribers")
}
