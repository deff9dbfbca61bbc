package sight

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes table estimates to {prefix}/{tableId} and the
// combined {prefix}/tables topic
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	estimates     map[string]*TableEstimate
	mu            sync.RWMutex
}

// NewPublisher creates an estimate publisher. The prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "tablesight".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	prefix = resolveMQTTSetting("MQTT_PUBLISH_PREFIX", prefix)
	if prefix == "" {
		prefix = "tablesight"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		estimates:     make(map[string]*TableEstimate),
	}
}

// PublishEstimate publishes one table's estimate and then the combined set
func (p *Publisher) PublishEstimate(est *TableEstimate) error {
	if est == nil {
		return fmt.Errorf("estimate is nil")
	}
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	stored := *est
	p.estimates[est.TableID] = &stored
	p.mu.Unlock()

	if err := p.publishJSON(fmt.Sprintf("%s/%s", p.publishPrefix, est.TableID), est); err != nil {
		return err
	}
	log.Printf("[PUBLISH] %s: origin=(%.2f, %.2f) phi=%.3f° residual=%.4f",
		est.TableID, est.Result.Origin.X, est.Result.Origin.Y, est.Result.PhiDeg, est.Result.Residual)

	return p.publishJSON(fmt.Sprintf("%s/tables", p.publishPrefix), map[string]interface{}{
		"tables":    p.Estimates(),
		"timestamp": time.Now().Unix(),
	})
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Estimates returns copies of every published estimate ordered by table ID
func (p *Publisher) Estimates() []*TableEstimate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*TableEstimate, 0, len(p.estimates))
	for _, est := range p.estimates {
		c := *est
		out = append(out, &c)
	}
	sortEstimates(out)
	return out
}

// ClearEstimate forgets a table so it drops out of the combined topic
func (p *Publisher) ClearEstimate(tableID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.estimates, tableID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// Prefix returns the topic prefix in use
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}
