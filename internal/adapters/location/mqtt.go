package location

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connect opens an MQTT client against broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

type locationMessage struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

// MQTTService is a LocationService fed by a device publishing its position
// on <prefix>/<device>/location. A publishing device has granted permission.
type MQTTService struct {
	*Feed
	client mqtt.Client
	topic  string

	mu         sync.Mutex
	subscribed bool
}

func Topic(prefix, device string) string {
	return strings.Trim(prefix, "/") + "/" + device + "/location"
}

func NewMQTTService(client mqtt.Client, prefix, device string) (*MQTTService, error) {
	if client == nil {
		return nil, errors.New("mqtt location: client is nil")
	}
	device = strings.TrimSpace(device)
	if device == "" || strings.ContainsAny(device, "/+#") {
		return nil, fmt.Errorf("mqtt location: invalid device id %q", device)
	}

	return &MQTTService{
		Feed:   NewFeed(ports.PermissionGranted),
		client: client,
		topic:  Topic(prefix, device),
	}, nil
}

// Start subscribes to the device topic.
func (s *MQTTService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return nil
	}
	token := s.client.Subscribe(s.topic, 1, s.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt location: subscribe %s: %w", s.topic, err)
	}
	s.subscribed = true
	return nil
}

// Stop unsubscribes from the device topic. Safe to call more than once.
func (s *MQTTService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.subscribed {
		return nil
	}
	s.subscribed = false
	token := s.client.Unsubscribe(s.topic)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt location: unsubscribe %s: %w", s.topic, err)
	}
	return nil
}

func (s *MQTTService) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("topic=%s invalid location message: %v", msg.Topic(), err)
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Printf("topic=%s validation error: %v", msg.Topic(), err)
		return
	}

	if err := s.Push(domain.Coordinate{Latitude: raw.Latitude, Longitude: raw.Longitude}); err != nil {
		log.Printf("topic=%s push error: %v", msg.Topic(), err)
	}
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp <= 0 {
		return fmt.Errorf("timestamp: must be positive")
	}
	return nil
}
