package utils

import (
	"strconv"

	"storefront/support-service/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	sessionsEnded    *prometheus.CounterVec
	messagesAppended *prometheus.CounterVec
	polls            *prometheus.CounterVec
	ratings          *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "sessions_created_total",
			Help:      "Support chat sessions created.",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "sessions_ended_total",
			Help:      "Support chat sessions moved to a terminal state.",
		}, []string{"status"}),
		messagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "messages_appended_total",
			Help:      "Messages appended to session logs.",
		}, []string{"sender", "system"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "polls_total",
			Help:      "Poll requests served.",
		}, []string{"has_messages"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "ratings_submitted_total",
			Help:      "Ratings submitted, by score.",
		}, []string{"score"}),
	}
	reg.MustRegister(m.sessionsCreated, m.sessionsEnded, m.messagesAppended, m.polls, m.ratings)
	return m
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionEnded(status models.SessionStatus) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) MessageAppended(msg *models.Message) {
	if m == nil {
		return
	}
	m.messagesAppended.WithLabelValues(string(msg.Sender), strconv.FormatBool(msg.IsSystemMessage)).Inc()
}

func (m *Metrics) PollServed(messages int) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(strconv.FormatBool(messages > 0)).Inc()
}

func (m *Metrics) RatingSubmitted(score int) {
	if m == nil {
		return
	}
	m.ratings.WithLabelValues(strconv.Itoa(score)).Inc()
}
