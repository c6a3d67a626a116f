// Package mailer renders and delivers transactional email.
package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
	Template string // template name, used as a metric label
}

// Sender delivers messages through one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// ErrNoRecipient is returned for a message without a To address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

var (
	emailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_emails_sent_total",
			Help: "Emails handed to the transport, by sender, template and result.",
		},
		[]string{"sender", "template", "result"},
	)
	emailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_email_send_duration_seconds",
			Help:    "Time spent delivering one email.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"sender"},
	)
)

type instrumented struct {
	Sender
}

// Instrument records delivery counts and latency for s.
func Instrument(s Sender) Sender {
	return instrumented{Sender: s}
}

func (i instrumented) Send(ctx context.Context, msg *Message) error {
	start := time.Now()
	err := i.Sender.Send(ctx, msg)
	emailSendDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	emailsSent.WithLabelValues(i.Name(), msg.Template, result).Inc()
	return err
}
