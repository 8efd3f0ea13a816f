package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const mqttPublishTimeout = 5 * time.Second

// MQTT publishes to <topic>/<kind> with QoS 1.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// brokerURL maps mqtt:// and mqtts:// onto the schemes paho dials. ws://
// and wss:// pass through.
func brokerURL(raw string) (string, *url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, pkgerrors.Wrapf(err, "invalid MQTT URL")
	}

	switch u.Scheme {
	case "ws", "wss", "tcp", "ssl":
		return raw, u, nil
	case "mqtt":
		return strings.Replace(raw, "mqtt://", "tcp://", 1), u, nil
	case "mqtts":
		return strings.Replace(raw, "mqtts://", "ssl://", 1), u, nil
	default:
		return "", nil, pkgerrors.Errorf("unsupported MQTT scheme %q (supported: mqtt, mqtts, ws, wss, tcp, ssl)", u.Scheme)
	}
}

func NewMQTT(rawURL, topic string) (*MQTT, error) {
	broker, u, err := brokerURL(rawURL)
	if err != nil {
		return nil, err
	}

	host, _ := os.Hostname()
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("battdiag-%s-%d", host, os.Getpid()))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetMaxReconnectInterval(10 * time.Second)

	if u.Scheme == "mqtts" || u.Scheme == "wss" || u.Scheme == "ssl" {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		password, _ := u.User.Password()
		opts.SetPassword(password)
	}

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logrus.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logrus.Debug("MQTT connected")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, pkgerrors.Wrapf(token.Error(), "failed to connect to MQTT broker")
	}

	logrus.WithFields(logrus.Fields{
		"broker": u.Host,
		"topic":  topic,
	}).Info("MQTT publisher connected")

	return &MQTT{client: client, topic: strings.TrimSuffix(topic, "/")}, nil
}

func (m *MQTT) Publish(ctx context.Context, kind string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal %s notification", kind)
	}

	topic := m.topic + "/" + kind
	token := m.client.Publish(topic, 1, false, b)

	timeout := mqttPublishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if !token.WaitTimeout(timeout) {
		return pkgerrors.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return pkgerrors.Wrapf(err, "failed to publish to %s", topic)
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
