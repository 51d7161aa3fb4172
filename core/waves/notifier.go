package waves

import (
	"context"

	"github.com/lmoreno87/advmatch/core/model"
)

// WaveNotice describes one notification wave: every advisor of a tier,
// notified over the tier's channel.
type WaveNotice struct {
	RequestID string
	Tier      int
	Channel   model.NotificationChannel
	Advisors  []model.Advisor
}

// AdvisorIDs returns the ids of the notified advisors.
func (n WaveNotice) AdvisorIDs() []string {
	ids := make([]string, 0, len(n.Advisors))
	for _, a := range n.Advisors {
		ids = append(ids, a.ID)
	}
	return ids
}

// Notifier delivers wave notifications. Delivery is fire-and-forget from the
// scheduler's perspective: a failed delivery is logged and never stalls tier
// escalation.
type Notifier interface {
	NotifyWave(ctx context.Context, n WaveNotice) error
}

// NopNotifier discards all notices.
type NopNotifier struct{}

func (NopNotifier) NotifyWave(context.Context, WaveNotice) error { return nil }
