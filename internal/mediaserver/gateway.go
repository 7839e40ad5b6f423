package mediaserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/errs"
)

// Gateway is the core's only window into the media server: URL
// builders for the RTSP/WHEP protocol surfaces it never implements
// itself, and a bounded-retry HTTP client for the admin surface.
type Gateway struct {
	host      string
	rtspPort  int
	whepPort  int
	adminPort int

	client *retryablehttp.Client
	log    zerolog.Logger
}

// Config addresses the local media server. Host should always be a
// loopback IPv4 literal, avoiding IPv6 address-family errors.
type Config struct {
	Host      string
	RTSPPort  int
	WHEPPort  int
	AdminPort int
}

// New builds a Gateway. The retryablehttp client retries transient
// admin-API failures with capped backoff — every admin call is bounded
// so a stalled media server never blocks the caller indefinitely.
func New(cfg Config, log zerolog.Logger) *Gateway {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil // logged at the call site instead

	return &Gateway{
		host:      cfg.Host,
		rtspPort:  cfg.RTSPPort,
		whepPort:  cfg.WHEPPort,
		adminPort: cfg.AdminPort,
		client:    client,
		log:       log,
	}
}

// PublishURL is the loopback RTSP URL the Ingest/Reveal publish
// pipelines push to for the given path name.
func (g *Gateway) PublishURL(path string) string {
	return fmt.Sprintf("rtsp://%s:%d/%s", g.host, g.rtspPort, path)
}

// SubscribeURL is the loopback RTSP URL Recording/Mixer subscribe from.
func (g *Gateway) SubscribeURL(path string) string {
	return fmt.Sprintf("rtsp://%s:%d/%s", g.host, g.rtspPort, path)
}

// WHEPEndpoint is the media server's WHEP endpoint for a path, used by
// the httpapi WHEP proxy (HTTP POST of an SDP offer / PATCH for ICE).
func (g *Gateway) WHEPEndpoint(path string) string {
	return fmt.Sprintf("http://%s:%d/%s/whep", g.host, g.whepPort, path)
}

func (g *Gateway) adminURL(suffix string) string {
	return fmt.Sprintf("http://%s:%d%s", g.host, g.adminPort, suffix)
}

// ListPaths calls the admin "list paths" endpoint, bounded by ctx.
func (g *Gateway) ListPaths(ctx context.Context) (*PathList, error) {
	var out PathList
	if err := g.getJSON(ctx, "/v3/paths/list", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPath fetches a single path's status. Returns (nil, nil) if the
// path does not currently exist (not-yet-published), not an error —
// callers use this to check "is this source live" without treating
// absence as a fault.
func (g *Gateway) GetPath(ctx context.Context, name string) (*Path, error) {
	var out Path
	err := g.getJSON(ctx, "/v3/paths/get/"+name, &out)
	if err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindTimeout {
			return nil, err
		}
		return nil, nil
	}
	return &out, nil
}

// Ready reports whether a published path is actively receiving data
// from its publisher (used to validate mixer/recording sources before
// start).
func (g *Gateway) Ready(ctx context.Context, name string) (bool, error) {
	p, err := g.GetPath(ctx, name)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}
	return p.Ready, nil
}

// Health calls the admin readiness endpoint.
func (g *Gateway) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := g.getJSON(ctx, "/v3/config/global/get", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *Gateway) getJSON(ctx context.Context, path string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, g.adminURL(path), nil)
	if err != nil {
		return errs.Wrap(errs.KindInvalidRequest, "building admin request", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindTimeout, "media server admin call timed out", err)
		}
		return errs.Wrap(errs.KindDeviceUnavailable, "media server admin call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errs.New(errs.KindInvalidRequest, "path not found")
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errs.Newf(errs.KindDeviceUnavailable, "media server admin returned %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.KindInvalidRequest, "decoding admin response", err)
	}
	return nil
}
