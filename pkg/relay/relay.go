/*
 * stream-gate is a token-gated streaming gateway for IPTV aggregation.
 * Copyright (C) 2026  The stream-gate authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package relay performs the upstream fetch and pipes bytes back to the
// client. It holds the single process-wide upstream HTTP client; request
// handlers share it read-only.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openiptv/stream-gate/pkg/guard"
	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/utils"
)

var (
	// ErrUpstream covers network failures and refused upstream requests.
	ErrUpstream = errors.New("upstream request failed")
	// ErrClientGone means the client disconnected mid-stream. It is normal
	// termination, not a fault, and is never logged as an error.
	ErrClientGone = errors.New("client disconnected")
	// ErrStalled means the upstream stopped producing bytes for longer than
	// the inactivity timeout.
	ErrStalled = errors.New("upstream stream stalled")
	// ErrManifestTooLarge means a manifest body exceeded the buffer cap.
	ErrManifestTooLarge = errors.New("manifest body too large")
)

const copyBufferSize = 64 * 1024

// DefaultManifestMaxBytes caps how much manifest text is buffered for
// rewriting. Real-world playlists are a few hundred KiB at most.
const DefaultManifestMaxBytes = 4 * 1024 * 1024

// Options configure the relay. Zero values get sensible defaults.
type Options struct {
	// ManifestTimeout is the wall-clock cap for manifest fetches, where the
	// whole body must arrive.
	ManifestTimeout time.Duration
	// InactivityTimeout is the allowed gap between received chunks on binary
	// streams. A long-lived stream is never killed by total duration, only
	// by stalling.
	InactivityTimeout time.Duration
	// MaxRedirects bounds redirect following.
	MaxRedirects int
	// ManifestMaxBytes bounds manifest buffering.
	ManifestMaxBytes int64
	// UserAgent sent on upstream requests.
	UserAgent string
}

// Relay is safe for concurrent use; it is built once at startup.
type Relay struct {
	client            *http.Client
	manifestTimeout   time.Duration
	inactivityTimeout time.Duration
	manifestMaxBytes  int64
	userAgent         string
}

// New builds the relay and its upstream HTTP client. The transport is tuned
// for long-lived streaming: no global request timeout, generous keep-alives.
func New(opts Options) *Relay {
	if opts.ManifestTimeout <= 0 {
		opts.ManifestTimeout = 15 * time.Second
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 60 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if opts.ManifestMaxBytes <= 0 {
		opts.ManifestMaxBytes = DefaultManifestMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = utils.GetIPTVUserAgent()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	maxRedirects := opts.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Relay{
		client:            client,
		manifestTimeout:   opts.ManifestTimeout,
		inactivityTimeout: opts.InactivityTimeout,
		manifestMaxBytes:  opts.ManifestMaxBytes,
		userAgent:         opts.UserAgent,
	}
}

// Upstream is one opened upstream exchange. The caller owns Resp.Body.
type Upstream struct {
	Resp *http.Response
	// FinalURL is the URL that actually served the response, after redirects.
	// Relative manifest URIs resolve against it, not the requested URL.
	FinalURL *url.URL
	Kind     types.StreamKind
}

// Close releases the upstream connection.
func (u *Upstream) Close() {
	if u != nil && u.Resp != nil {
		u.Resp.Body.Close()
	}
}

// Open issues the upstream GET bound to ctx. rangeHeader, when non-empty, is
// forwarded verbatim so seeking keeps working through the gateway.
func (r *Relay) Open(ctx context.Context, target *guard.UpstreamTarget, rangeHeader string) (*Upstream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	utils.DebugLog("-> Upstream fetch: %s (range=%q)", utils.MaskURL(target.String()), rangeHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrClientGone
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	final := resp.Request.URL
	kind := DetectKind(final.Path, resp.Header.Get("Content-Type"))
	utils.DebugLog("-> Upstream response: status=%d kind=%s final=%s", resp.StatusCode, kind, utils.MaskURL(final.String()))

	return &Upstream{Resp: resp, FinalURL: final, Kind: kind}, nil
}

// ManifestTimeout returns the wall-clock limit for manifest fetches. The
// handler derives the request context with it before calling Open.
func (r *Relay) ManifestTimeout() time.Duration {
	return r.manifestTimeout
}

// ReadManifest drains the full manifest body as text, bounded by the
// configured cap.
func (r *Relay) ReadManifest(u *Upstream) (string, error) {
	body, err := io.ReadAll(io.LimitReader(u.Resp.Body, r.manifestMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if int64(len(body)) > r.manifestMaxBytes {
		return "", ErrManifestTooLarge
	}
	return string(body), nil
}

// Pipe copies the upstream body to the client chunk by chunk. clientCtx is
// the inbound request context; cancelUpstream aborts the upstream request and
// is invoked when the upstream stalls past the inactivity timeout.
//
// Cancellation is bidirectional: a client disconnect aborts the upstream
// fetch (via the shared request context), and an upstream failure terminates
// the client response. Returns nil on normal completion, ErrClientGone on
// client disconnect, ErrStalled on inactivity, or a wrapped upstream error.
func (r *Relay) Pipe(clientCtx context.Context, w http.ResponseWriter, body io.Reader, cancelUpstream context.CancelFunc) error {
	var stalled int32
	watchdog := time.AfterFunc(r.inactivityTimeout, func() {
		atomic.StoreInt32(&stalled, 1)
		cancelUpstream()
	})
	defer watchdog.Stop()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufferSize)

	for {
		select {
		case <-clientCtx.Done():
			return ErrClientGone
		default:
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			watchdog.Reset(r.inactivityTimeout)
			if _, werr := w.Write(buf[:n]); werr != nil {
				return ErrClientGone
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			if clientCtx.Err() != nil {
				return ErrClientGone
			}
			if atomic.LoadInt32(&stalled) == 1 {
				return ErrStalled
			}
			return fmt.Errorf("%w: %v", ErrUpstream, rerr)
		}
	}
}

// passthroughHeaders are relayed from upstream unchanged to preserve caching
// and byte-range semantics for the player.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Cache-Control",
	"ETag",
	"Last-Modified",
}

// CopyHeaders writes the passthrough header set from upstream to the client
// response. Accept-Ranges is synthesized when upstream omits it, to maximize
// player seek support; Cache-Control defaults to no-store.
func CopyHeaders(dst http.Header, src http.Header) {
	for _, h := range passthroughHeaders {
		if v := src.Get(h); v != "" {
			dst.Set(h, v)
		}
	}
	if dst.Get("Accept-Ranges") == "" {
		dst.Set("Accept-Ranges", "bytes")
	}
	if dst.Get("Cache-Control") == "" {
		dst.Set("Cache-Control", "no-store")
	}
}

// DetectKind makes the manifest vs binary decision once per request, from
// the final URL extension and the upstream content type.
func DetectKind(urlPath, contentType string) types.StreamKind {
	switch strings.ToLower(path.Ext(urlPath)) {
	case ".m3u8", ".m3u":
		return types.StreamManifest
	}

	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return types.StreamManifest
	}

	return types.StreamBinary
}
