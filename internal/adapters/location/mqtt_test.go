package location

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/ports"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeMQTTMessage struct {
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 0 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return "devices/phone-1/location" }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient implements only the subscription calls used by MQTTService.
type fakeClient struct {
	mqtt.Client
	subscribed   map[string]mqtt.MessageHandler
	subscribeErr error
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	if c.subscribeErr != nil {
		return &fakeToken{err: c.subscribeErr}
	}
	if c.subscribed == nil {
		c.subscribed = map[string]mqtt.MessageHandler{}
	}
	c.subscribed[topic] = cb
	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	for _, t := range topics {
		delete(c.subscribed, t)
	}
	return &fakeToken{}
}

func TestMQTTServiceSubscribesToDeviceTopic(t *testing.T) {
	client := &fakeClient{}
	svc, err := NewMQTTService(client, "/devices/", "phone-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	handler, ok := client.subscribed["devices/phone-1/location"]
	if !ok {
		t.Fatalf("expected subscription, got %v", client.subscribed)
	}

	var got []domain.Coordinate
	if _, err := svc.Watch(context.Background(), ports.WatchOptions{}, func(c domain.Coordinate) {
		got = append(got, c)
	}); err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(locationMessage{Latitude: 41.0947, Longitude: 29.2146, Timestamp: 1715003456})
	handler(client, &fakeMQTTMessage{payload: payload})

	if len(got) != 1 || got[0] != (domain.Coordinate{Latitude: 41.0947, Longitude: 29.2146}) {
		t.Fatalf("unexpected fixes: %v", got)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(client.subscribed) != 0 {
		t.Errorf("expected unsubscribe, still have %v", client.subscribed)
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestMQTTServiceStartError(t *testing.T) {
	svc, err := NewMQTTService(&fakeClient{subscribeErr: errors.New("not authorized")}, "devices", "phone-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewMQTTServiceRejectsWildcardDevice(t *testing.T) {
	for _, device := range []string{"", "a/b", "+", "#"} {
		if _, err := NewMQTTService(&fakeClient{}, "devices", device); err == nil {
			t.Errorf("device %q: expected error", device)
		}
	}
	if _, err := NewMQTTService(nil, "devices", "x"); err == nil {
		t.Error("nil client: expected error")
	}
}

func TestHandleMessage_InvalidPayloadIgnored(t *testing.T) {
	svc, err := NewMQTTService(&fakeClient{}, "devices", "phone-1")
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	if _, err := svc.Watch(context.Background(), ports.WatchOptions{}, func(domain.Coordinate) { calls++ }); err != nil {
		t.Fatal(err)
	}

	svc.handleMessage(nil, &fakeMQTTMessage{payload: []byte("invalid")})
	bad, _ := json.Marshal(locationMessage{Latitude: 91, Longitude: 0, Timestamp: 1})
	svc.handleMessage(nil, &fakeMQTTMessage{payload: bad})

	if calls != 0 {
		t.Fatalf("expected no deliveries, got %d", calls)
	}
}

func TestValidateLocationMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     locationMessage
		wantErr bool
	}{
		{"valid", locationMessage{Latitude: 0, Longitude: 0, Timestamp: 1}, false},
		{"lat too low", locationMessage{Latitude: -91, Longitude: 0, Timestamp: 1}, true},
		{"lat too high", locationMessage{Latitude: 91, Longitude: 0, Timestamp: 1}, true},
		{"lon too low", locationMessage{Latitude: 0, Longitude: -181, Timestamp: 1}, true},
		{"lon too high", locationMessage{Latitude: 0, Longitude: 181, Timestamp: 1}, true},
		{"zero timestamp", locationMessage{Latitude: 0, Longitude: 0, Timestamp: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLocationMessage(&tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateLocationMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
