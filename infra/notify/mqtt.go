// Package notify pushes task completion notices to an MQTT broker so fleet
// dashboards learn about finished schedules without polling the API.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	corelogger "ambuplan/core/logger"
	coretasks "ambuplan/core/tasks"
)

// Config defines the connection parameters for the MQTT notifier.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	Retain   bool   `json:"retain"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "ambuplan-notifier"
	}
	if c.Topic == "" {
		c.Topic = "ambuplan/tasks"
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

// Notifier publishes one message per finished task.
type Notifier struct {
	cli    pahoClient
	topic  string
	qos    byte
	retain bool
	log    corelogger.Logger
}

// notice is the wire payload.
type notice struct {
	TaskID     string    `json:"task_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// New connects to the broker and returns a ready notifier.
func New(cfg Config, log corelogger.Logger) (*Notifier, error) {
	cfg.SetDefaults()
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}
	if log == nil {
		log = corelogger.Nop{}
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	cli := newMQTTClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %v", cfg.Broker, token.Error())
	}
	return &Notifier{cli: cli, topic: cfg.Topic, qos: cfg.QoS, retain: cfg.Retain, log: log}, nil
}

// Run consumes task events until the channel closes, publishing terminal
// transitions. Intermediate states are not broadcast.
func (n *Notifier) Run(events <-chan coretasks.Event) {
	for ev := range events {
		if !ev.Task.Status.Terminal() {
			continue
		}
		n.publish(ev.Task)
	}
}

func (n *Notifier) publish(t coretasks.Task) {
	payload, err := json.Marshal(notice{
		TaskID:     t.ID,
		Status:     string(t.Status),
		Error:      t.Error,
		FinishedAt: t.FinishedAt,
	})
	if err != nil {
		n.log.Errorf("encoding notice for task %s: %v", t.ID, err)
		return
	}
	token := n.cli.Publish(n.topic, n.qos, n.retain, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		n.log.Warnf("publishing notice for task %s: %v", t.ID, token.Error())
	}
}

// Close disconnects from the broker.
func (n *Notifier) Close() {
	n.cli.Disconnect(250)
}
