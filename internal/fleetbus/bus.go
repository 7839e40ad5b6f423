// Package fleetbus publishes fleet-visible lifecycle events over NATS.
// The only publisher in this module is the Mode Manager (mode.changed);
// recording sessions and mixer health publish no fleet events. It never subscribes to anything the core itself needs to
// act on — the fleet-manager agent is an external collaborator that
// only listens.
package fleetbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Config controls whether the bus embeds its own NATS server or
// connects to an external one.
type Config struct {
	Enabled bool
	URL     string
	Embed   bool
}

// Event is one fleet-visible lifecycle notification.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

const subjectPrefix = "stagebus.events."

// Bus is a thin publish-only wrapper over a NATS connection.
type Bus struct {
	conn     *nats.Conn
	embedded *server.Server
	log      zerolog.Logger
}

// New connects (embedding a local NATS server first if cfg.Embed) and
// returns a Bus. Returns (nil, nil) if cfg.Enabled is false — callers
// treat a nil Bus as "fleet eventing disabled" and skip publishing.
func New(cfg Config, log zerolog.Logger) (*Bus, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var embedded *server.Server
	url := cfg.URL

	if cfg.Embed {
		opts := &server.Options{
			Host:        "127.0.0.1",
			Port:        server.RANDOM_PORT,
			AllowNonTLS: true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("fleetbus: creating embedded nats server: %w", err)
		}
		go ns.Start()
		if !ns.ReadyForConnections(4 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("fleetbus: embedded nats server did not become ready")
		}
		embedded = ns
		url = ns.ClientURL()
	}

	nc, err := nats.Connect(url)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, fmt.Errorf("fleetbus: connecting to nats at %s: %w", url, err)
	}

	log.Info().Str("url", url).Bool("embedded", embedded != nil).Msg("fleet event bus connected")
	return &Bus{conn: nc, embedded: embedded, log: log}, nil
}

// Publish sends an event under stagebus.events.<eventType>. Failures
// are logged, not returned — a dropped fleet event never blocks the
// subsystem that raised it.
func (b *Bus) Publish(eventType string, payload any) {
	if b == nil {
		return
	}

	data, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now(), Payload: payload})
	if err != nil {
		b.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal fleet event")
		return
	}
	if err := b.conn.Publish(subjectPrefix+eventType, data); err != nil {
		b.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish fleet event")
	}
}

// Close closes the connection and shuts down any embedded server.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if b.conn != nil {
		b.conn.Close()
	}
	if b.embedded != nil {
		b.embedded.Shutdown()
	}
}
