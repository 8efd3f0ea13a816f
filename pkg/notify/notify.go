// Package notify forwards completed diagnostics to message brokers.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/battos/battdiag/pkg/config"
)

// Publisher sends one payload for a diagnostic kind.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) error
	Close() error
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, kind string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig connects the brokers configured in conf. Brokers that fail to
// connect are logged and skipped so the daemon can still serve requests.
func FromConfig(conf config.Config) Publisher {
	var pubs Multi

	if u := conf.MQTTURL(); u != "" {
		p, err := NewMQTT(u, conf.MQTTTopic())
		if err != nil {
			logrus.WithError(err).Error("mqtt notifications disabled")
		} else {
			pubs = append(pubs, p)
		}
	}

	if u := conf.NATSURL(); u != "" {
		p, err := NewNATS(u, conf.NATSSubject())
		if err != nil {
			logrus.WithError(err).Error("nats notifications disabled")
		} else {
			pubs = append(pubs, p)
		}
	}

	if len(pubs) == 0 {
		return Nop{}
	}
	return pubs
}
