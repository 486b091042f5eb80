package metrics

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts the business events the operator dashboards watch:
// webhook dispositions, roster sync passes, and purchases flipped to joined.
type DomainMetrics struct {
	webhooks      *prometheus.CounterVec
	syncedMembers *prometheus.GaugeVec
	joined        prometheus.Counter
	reconnects    prometheus.Counter
}

// NewDomainMetrics registers the business metrics on the provided registerer.
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		return &DomainMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound webhook deliveries by disposition.",
	}, []string{"status"})
	syncedMembers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "group_members_synced",
		Help: "Members stored by the last roster sync, per group.",
	}, []string{"group_id"})
	joined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purchases_joined_total",
		Help: "Purchases transitioned to joined by reconciliation.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messenger_reconnect_attempts_total",
		Help: "Messenger session reconnect attempts.",
	})
	reg.MustRegister(webhooks, syncedMembers, joined, reconnects)
	return &DomainMetrics{
		webhooks:      webhooks,
		syncedMembers: syncedMembers,
		joined:        joined,
		reconnects:    reconnects,
	}
}

// IncWebhook counts one webhook delivery with the given disposition.
func (d *DomainMetrics) IncWebhook(status string) {
	if d == nil || d.webhooks == nil {
		return
	}
	d.webhooks.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetSyncedMembers records the roster size observed for a group.
func (d *DomainMetrics) SetSyncedMembers(groupID string, count int) {
	if d == nil || d.syncedMembers == nil {
		return
	}
	d.syncedMembers.WithLabelValues(normalizeLabel(groupID)).Set(float64(count))
}

// IncJoined counts one purchase marked as joined.
func (d *DomainMetrics) IncJoined() {
	if d == nil || d.joined == nil {
		return
	}
	d.joined.Inc()
}

// IncReconnect counts one messenger reconnect attempt.
func (d *DomainMetrics) IncReconnect() {
	if d == nil || d.reconnects == nil {
		return
	}
	d.reconnects.Inc()
}
