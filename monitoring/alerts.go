package monitoring

import (
	"context"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"

	"ticket-pass/utils"
)

const (
	securityChannel = "security-alerts"
	opsChannel      = "ops-alerts"
)

// AlertPublisher is the operational alerting path. Security alerts flag
// possible forged codes; ops alerts cover failures that must not affect the
// validation outcome (e.g. a log append that could not be written).
// Publishes go through a circuit breaker so a PubNub outage cannot stall gates.
type AlertPublisher struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewAlertPublisher(pn *pubnub.PubNub) *AlertPublisher {
	return &AlertPublisher{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub-alerts"),
	}
}

func (a *AlertPublisher) SecurityAlert(ctx context.Context, kind string, detail map[string]any) {
	a.publish(ctx, securityChannel, kind, detail)
}

func (a *AlertPublisher) OpsAlert(ctx context.Context, kind string, detail map[string]any) {
	a.publish(ctx, opsChannel, kind, detail)
}

// NotifyGate publishes a per-event gate notification (e.g. a successful
// check-in) so gate dashboards can update live.
func (a *AlertPublisher) NotifyGate(ctx context.Context, eventID string, message map[string]any) {
	a.publish(ctx, "event-"+eventID, "gate_update", message)
}

func (a *AlertPublisher) publish(ctx context.Context, channel, kind string, detail map[string]any) {
	if a.pubnub == nil {
		return
	}

	message := map[string]any{
		"type":      kind,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range detail {
		message[k] = v
	}

	_, err := a.breaker.Execute(ctx, func() (interface{}, error) {
		_, _, err := a.pubnub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return nil, err
	})
	if err != nil {
		slog.Error("alert publish failed", "channel", channel, "type", kind, "error", err)
	}
}
