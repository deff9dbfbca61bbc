package sight

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RequestHandler is called for every message on a table's request topic.
// err is set when the payload could not be decoded; req is nil then.
type RequestHandler func(tableID string, req *EstimateRequest, err error)

// MQTTClient subscribes to the request topic of each configured table
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     RequestHandler
	isConnected bool
	mu          sync.RWMutex
}

// resolveMQTTSetting prefers the environment variable over the config value
func resolveMQTTSetting(envKey, configured string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return configured
}

// InitMQTT connects to the broker named by MQTT_BROKER or mqtt.broker.
// It returns nil, nil when neither is set.
func InitMQTT(config *Config, handler RequestHandler) (*MQTTClient, error) {
	var configured MQTTConfig
	if config != nil {
		configured = config.MQTT
	}

	broker := resolveMQTTSetting("MQTT_BROKER", configured.Broker)
	if broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config == nil || len(config.Tables) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no table configuration provided")
	}

	c := &MQTTClient{
		config:  config,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := resolveMQTTSetting("MQTT_CLIENT_ID", configured.ClientID)
	if clientID == "" {
		clientID = "tablesight"
	}
	opts.SetClientID(clientID)

	if username := resolveMQTTSetting("MQTT_USERNAME", configured.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(resolveMQTTSetting("MQTT_PASSWORD", configured.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()

	return c, nil
}

// newMQTTClient wraps an existing mqtt.Client; used with MockClient
func newMQTTClient(client mqtt.Client, config *Config, handler RequestHandler) *MQTTClient {
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}

// AttachMQTT serves table requests over a client the caller manages.
// Table topics are subscribed immediately when client is connected and
// otherwise on its next connect, if it supports SetOnConnect.
func AttachMQTT(client mqtt.Client, config *Config, handler RequestHandler) *MQTTClient {
	c := newMQTTClient(client, config, handler)
	if hooked, ok := client.(interface {
		SetOnConnect(mqtt.OnConnectHandler)
	}); ok {
		hooked.SetOnConnect(c.onConnect)
	}
	if client.IsConnected() {
		c.onConnect(client)
	}
	return c
}

func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected to broker")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying connection in %v", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every table topic; it runs again after each reconnect
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	for _, table := range c.config.Tables {
		if table.Topic == "" {
			log.Printf("[MQTT] table %s has no topic configured", table.ID)
			continue
		}

		token := client.Subscribe(table.Topic, 0, c.requestHandler(table.ID))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", table.Topic, token.Error())
			continue
		}
		log.Printf("[MQTT] subscribed to %s for table %s", table.Topic, table.ID)
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// requestHandler decodes a request payload. Requests without a strategy,
// and bare observation sets, use the table's configured strategy.
func (c *MQTTClient) requestHandler(tableID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("[MQTT] request for %s (topic: %s, size: %d bytes)", tableID, msg.Topic(), len(payload))

		req, err := decodeRequestPayload(payload, c.config.StrategyFor(tableID))
		if err != nil {
			log.Printf("[MQTT] error decoding request for %s: %v", tableID, err)
		}
		if c.handler != nil {
			c.handler(tableID, req, err)
		}
	}
}

// decodeRequestPayload accepts a JSON estimate request or, failing that,
// a YAML observation set
func decodeRequestPayload(payload []byte, fallback Strategy) (*EstimateRequest, error) {
	req, err := parseEstimateRequest(payload, fallback)
	if err == nil || errors.Is(err, ErrUnknownStrategy) {
		return req, err
	}
	set, err := ParseObservations(payload)
	if err != nil {
		return nil, err
	}
	return &EstimateRequest{Strategy: fallback, Observations: set.Observations}, nil
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting from broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// TableByTopic returns the table ID subscribed to topic
func (c *MQTTClient) TableByTopic(topic string) (string, bool) {
	for _, table := range c.config.Tables {
		if table.Topic == topic {
			return table.ID, true
		}
	}
	return "", false
}

// Client returns the underlying MQTT client for publishing
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}
