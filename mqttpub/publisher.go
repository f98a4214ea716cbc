package mqttpub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
)

const publishTimeout = 5 * time.Second

// PriceMessage is the retained payload announcing the current price.
type PriceMessage struct {
	StartsAt     time.Time `json:"startsAt"`
	Hour         string    `json:"hour"`
	DynamicPrice float64   `json:"dynamic"`
	StaticPrice  float64   `json:"fix"`
	TotalPrice   float64   `json:"total"`
	Unit         string    `json:"unit"`
	Tariff       string    `json:"tariff"`
}

func NewPriceMessage(p ews.PricePoint, meta ews.PriceMetadata) PriceMessage {
	return PriceMessage{
		StartsAt:     p.StartsAt,
		Hour:         hours.FromTime(p.StartsAt).LocalizedString(),
		DynamicPrice: p.DynamicPrice,
		StaticPrice:  p.StaticPrice,
		TotalPrice:   p.TotalPrice,
		Unit:         meta.Unit,
		Tariff:       meta.Tariff,
	}
}

type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Publisher struct {
	client mqtt.Client
	pub    tokenPublisher
	topic  string
	logger *slog.Logger
}

func New(broker string, port int16, username, password, clientId, topic string) *Publisher {
	logger := slog.Default().With("module", "mqtt")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", broker, port))
	opts.SetClientID(clientId)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqtt.CRITICAL = newPahoLogger(logger, slog.LevelError)
	mqtt.ERROR = newPahoLogger(logger, slog.LevelError)
	mqtt.WARN = newPahoLogger(logger, slog.LevelWarn)

	client := mqtt.NewClient(opts)
	return &Publisher{client: client, pub: client, topic: topic, logger: logger}
}

func (p *Publisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (p *Publisher) Disconnect() {
	p.logger.Info("disconnecting MQTT client")
	p.client.Disconnect(250)
}

// PublishPrice sends msg as a retained message so new subscribers get the
// current price right away.
func (p *Publisher) PublishPrice(msg PriceMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal price message: %w", err)
	}

	token := p.pub.Publish(p.topic, 1, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Debug("price published", slog.String("topic", p.topic), slog.Float64("total", msg.TotalPrice))
	return nil
}
