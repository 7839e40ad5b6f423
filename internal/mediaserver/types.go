// Package mediaserver is a thin client over the local media server's
// publish/subscribe + admin HTTP API. The core never implements
// RTSP/WHEP itself — it only builds loopback URLs and talks to the
// admin surface for path listing, readiness and stream health.
package mediaserver

import "time"

// Path mirrors a media-server path/stream entry as returned by its
// admin "list paths" endpoint.
type Path struct {
	Name          string   `json:"name"`
	ConfName      string   `json:"confName"`
	Source        *Source  `json:"source"`
	Ready         bool     `json:"ready"`
	ReadyTime     *string  `json:"readyTime"`
	Tracks        []string `json:"tracks"`
	BytesReceived int64    `json:"bytesReceived"`
	BytesSent     int64    `json:"bytesSent"`
	Readers       []Reader `json:"readers"`
}

// Source describes the publisher of a Path.
type Source struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Reader describes one subscriber of a Path.
type Reader struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PathList is the admin "list paths" response envelope.
type PathList struct {
	ItemCount int64  `json:"itemCount"`
	PageCount int64  `json:"pageCount"`
	Items     []Path `json:"items"`
}

// HealthStatus is the admin health-check response shape.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
