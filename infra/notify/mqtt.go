// Package notify delivers wave notifications to advisors over MQTT. Each
// advisor device subscribes to its own channel topic; downstream gateways
// translate the messages into WhatsApp or push deliveries.
package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/lmoreno87/advmatch/core/waves"
	"github.com/lmoreno87/advmatch/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
	UseTLS      bool   `json:"use_tls"`
	ClientCert  string `json:"client_cert"`
	ClientKey   string `json:"client_key"`
	CABundle    string `json:"ca_bundle"`
	MaxRetries  int    `json:"max_retries"`
	BackoffMS   int    `json:"backoff_ms"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "advmatch-notifier"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "advmatch"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// MQTTNotifier implements waves.Notifier over an Eclipse Paho connection.
type MQTTNotifier struct {
	cli        pahoClient
	prefix     string
	qos        byte
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewMQTTNotifier connects to the broker and returns a ready notifier.
func NewMQTTNotifier(cfg Config) (*MQTTNotifier, error) {
	cfg.SetDefaults()
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt-notifier")
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTNotifier{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

func clientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.loadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (c Config) loadTLSConfig() (*tls.Config, error) {
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

type waveMessage struct {
	NoticeID  string `json:"notice_id"`
	RequestID string `json:"request_id"`
	Tier      int    `json:"tier"`
	Channel   string `json:"channel"`
	AdvisorID string `json:"advisor_id"`
	SentAt    int64  `json:"sent_at"`
}

// NotifyWave publishes one message per advisor on the advisor's channel
// topic. The first publish failure aborts the wave and is reported to the
// caller.
func (n *MQTTNotifier) NotifyWave(ctx context.Context, notice waves.WaveNotice) error {
	for _, adv := range notice.Advisors {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := waveMessage{
			NoticeID:  uuid.NewString(),
			RequestID: notice.RequestID,
			Tier:      notice.Tier,
			Channel:   string(notice.Channel),
			AdvisorID: adv.ID,
			SentAt:    time.Now().UnixMilli(),
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/notify/%s/%s", n.prefix, notice.Channel, adv.ID)
		if err := n.Publish(topic, payload); err != nil {
			return fmt.Errorf("notify advisor %s: %w", adv.ID, err)
		}
	}
	n.logInfof("wave tier %d for request %s: notified %d advisors over %s",
		notice.Tier, notice.RequestID, len(notice.Advisors), notice.Channel)
	return nil
}

// Publish sends a raw payload with the configured retry and backoff.
func (n *MQTTNotifier) Publish(topic string, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		token := n.cli.Publish(topic, n.qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		n.logErrf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		time.Sleep(n.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

func (n *MQTTNotifier) logInfof(format string, args ...any) {
	if n.log != nil {
		n.log.Infof(format, args...)
	}
}

func (n *MQTTNotifier) logErrf(format string, args ...any) {
	if n.log != nil {
		n.log.Errorf(format, args...)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (n *MQTTNotifier) Disconnect() {
	if n.cli != nil && n.cli.IsConnected() {
		n.cli.Disconnect(250)
	}
}
