package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NATS publishes to <subject>.<kind>.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("battdiag"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logrus.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to NATS")
	}

	logrus.WithFields(logrus.Fields{
		"url":     url,
		"subject": subject,
	}).Info("NATS publisher connected")

	return &NATS{nc: nc, subject: strings.TrimSuffix(subject, ".")}, nil
}

func (n *NATS) Publish(_ context.Context, kind string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal %s notification", kind)
	}

	subject := n.subject + "." + kind
	if err := n.nc.Publish(subject, b); err != nil {
		return pkgerrors.Wrapf(err, "failed to publish to %s", subject)
	}
	return nil
}

func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
