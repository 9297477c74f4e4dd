package doser

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTT topics, kept compatible with the original firmware.
const (
	topicLastDosed   = "doser/lastDosed"
	topicRemainingML = "doser/remainingML"
	topicAlert       = "doser/alert"
)

// Notifier is the optional notification sink. Publishing is fire-and-forget;
// failures are ignored by the dosing engine.
type Notifier interface {
	Publish(topic string, payload []byte)
}

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Publish(string, []byte) {}

// MQTTNotifier publishes engine events to a broker. A broker that never
// connects just means no notifications; dosing is unaffected.
type MQTTNotifier struct {
	client mqtt.Client
	log    *zap.SugaredLogger
}

func NewMQTTNotifier(broker, clientID string, log *zap.SugaredLogger) *MQTTNotifier {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	n := &MQTTNotifier{client: mqtt.NewClient(opts), log: log}
	if token := n.client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Warnw("mqtt connect failed", "broker", broker, "error", token.Error())
	}
	return n
}

func (n *MQTTNotifier) Publish(topic string, payload []byte) {
	if !n.client.IsConnected() {
		return
	}
	n.client.Publish(topic, 0, false, payload)
}

// publishDose announces a completed dose and the new bottle levels.
// Callers hold c.mu.
func (c *Controller) publishDose(channel int, volumeMl float32, scheduled bool) {
	payload, _ := json.Marshal(map[string]interface{}{
		"channel":   c.state.Schedules[channel-1].ChannelName,
		"ml":        volumeMl,
		"scheduled": scheduled,
		"timestamp": c.state.Inventory[channel-1].LastDoseTime,
	})
	c.notifier.Publish(topicLastDosed, payload)
	if c.state.NotifyDose {
		c.notifier.Publish(topicAlert, alertPayload("Dose dispensed",
			fmt.Sprintf("%s: %.1f mL", c.state.Schedules[channel-1].ChannelName, volumeMl)))
	}
	levels, _ := json.Marshal(map[string]interface{}{
		c.state.Schedules[0].ChannelName: map[string]float32{"ml": c.state.Inventory[0].RemainingMl},
		c.state.Schedules[1].ChannelName: map[string]float32{"ml": c.state.Inventory[1].RemainingMl},
	})
	c.notifier.Publish(topicRemainingML, levels)
}

// publishLowInventory fires the low-bottle alert. Callers hold c.mu.
func (c *Controller) publishLowInventory(channel int, days int32) {
	c.notifier.Publish(topicAlert, alertPayload("Bottle running low",
		fmt.Sprintf("%s has about %d day(s) of supply left", c.state.Schedules[channel-1].ChannelName, days)))
}

func (c *Controller) publishStartup(device string) {
	c.notifier.Publish(topicAlert, alertPayload("Doser online", device+" started"))
}

func alertPayload(title, body string) []byte {
	payload, _ := json.Marshal(map[string]string{"title": title, "body": body})
	return payload
}
