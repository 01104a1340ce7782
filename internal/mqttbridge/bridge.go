package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/NotrixInc/nx-driver-templates/drivers/benq-projector-go/internal/driversdk"
)

const (
	qos            = 1
	defaultTimeout = 5 * time.Second
)

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is the prefix every slot is published under.
	Topic string
}

// StateSetter accepts command writes arriving from the broker.
type StateSetter interface {
	Namespace() string
	SetState(ctx context.Context, id string, val any, ack bool) error
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Bridge publishes store writes as retained MQTT messages and turns
// "<topic>/<ns>/commands/<cmd>/set" messages into unacknowledged writes.
type Bridge struct {
	client  mqtt.Client
	pub     publisher
	prefix  string
	store   StateSetter
	log     driversdk.Logger
	timeout time.Duration
}

type statePayload struct {
	Val  any    `json:"val"`
	Ack  bool   `json:"ack"`
	Ts   int64  `json:"ts"`
	Lc   int64  `json:"lc"`
	From string `json:"from,omitempty"`
}

func New(opts Options, store StateSetter, log driversdk.Logger) *Bridge {
	b := &Bridge{
		prefix:  strings.Trim(opts.Topic, "/"),
		store:   store,
		log:     log,
		timeout: defaultTimeout,
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			if err := b.subscribe(c); err != nil {
				b.log.Warn("mqtt subscribe failed", "err", err.Error())
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Warn("mqtt connection lost", "err", err.Error())
		})
	b.client = mqtt.NewClient(co)
	b.pub = b.client
	return b
}

// Connect dials the broker. Subscriptions are (re)made on every connect.
func (b *Bridge) Connect(ctx context.Context) error {
	tok := b.client.Connect()
	if err := wait(ctx, tok, b.timeout); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	b.log.Info("mqtt connected", "topic", b.prefix)
	return nil
}

func (b *Bridge) Close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) subscribe(c mqtt.Client) error {
	filter := b.CommandFilter()
	tok := c.Subscribe(filter, qos, b.onMessage)
	return wait(context.Background(), tok, b.timeout)
}

// CommandFilter is the subscription used for inbound command writes.
func (b *Bridge) CommandFilter() string {
	return b.StateTopic(b.store.Namespace()+".commands.+") + "/set"
}

// StateTopic maps a full dot id to its topic.
func (b *Bridge) StateTopic(full string) string {
	t := strings.ReplaceAll(full, ".", "/")
	if b.prefix == "" {
		return t
	}
	return b.prefix + "/" + t
}

func (b *Bridge) MirrorObject(ctx context.Context, id string, obj driversdk.ObjectDescriptor) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object %s: %w", id, err)
	}
	return b.publish(ctx, b.StateTopic(id)+"/$object", payload)
}

func (b *Bridge) MirrorState(ctx context.Context, id string, st driversdk.State) error {
	payload, err := json.Marshal(statePayload{
		Val:  st.Val,
		Ack:  st.Ack,
		Ts:   st.Ts.UnixMilli(),
		Lc:   st.Lc.UnixMilli(),
		From: st.From,
	})
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", id, err)
	}
	return b.publish(ctx, b.StateTopic(id), payload)
}

func (b *Bridge) publish(ctx context.Context, topic string, payload []byte) error {
	tok := b.pub.Publish(topic, qos, true, payload)
	if err := wait(ctx, tok, b.timeout); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	id, ok := b.commandID(msg.Topic())
	if !ok {
		b.log.Debug("mqtt message on unexpected topic", "topic", msg.Topic())
		return
	}
	val := decodeValue(msg.Payload())
	if err := b.store.SetState(context.Background(), id, val, false); err != nil {
		b.log.Warn("mqtt command write failed", "id", id, "err", err.Error())
	}
}

// commandID turns ".../<ns>/commands/<cmd>/set" into the relative id
// "commands.<cmd>".
func (b *Bridge) commandID(topic string) (string, bool) {
	base := b.StateTopic(b.store.Namespace()+".commands") + "/"
	if !strings.HasPrefix(topic, base) || !strings.HasSuffix(topic, "/set") {
		return "", false
	}
	cmd := strings.TrimSuffix(strings.TrimPrefix(topic, base), "/set")
	if cmd == "" || strings.Contains(cmd, "/") {
		return "", false
	}
	return "commands." + cmd, true
}

// decodeValue accepts JSON scalars ("true", "1", "\"x\"") and falls back to
// the raw text.
func decodeValue(p []byte) any {
	s := strings.TrimSpace(string(p))
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	}
	return tok.Error()
}
