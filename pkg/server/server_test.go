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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openiptv/stream-gate/pkg/catalog"
	"github.com/openiptv/stream-gate/pkg/config"
	"github.com/openiptv/stream-gate/pkg/guard"
	"github.com/openiptv/stream-gate/pkg/relay"
	"github.com/openiptv/stream-gate/pkg/token"
	"github.com/openiptv/stream-gate/pkg/types"
	"github.com/openiptv/stream-gate/pkg/users"
)

func testGateway(t *testing.T, cat catalog.Catalog) (*Config, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := token.NewCodec("test-secret", time.Minute, false)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	s := &Config{
		GatewayConfig: &config.GatewayConfig{
			HostConfig:     &config.HostConfiguration{Hostname: "gw.example.com", Port: 8080},
			AdvertisedPort: 8080,
			TokenTTL:       time.Minute,
			DefaultRole:    types.RoleUser,
		},
		codec:   codec,
		catalog: cat,
		roles:   users.NewStatic(map[string]string{"alice": types.RolePremium}, types.RoleUser),
		relay:   relay.New(relay.Options{}),
		// httptest upstreams live on loopback
		policy:    guard.Policy{AllowPrivate: true},
		startedAt: time.Now(),
	}

	router := gin.New()
	s.routes(router.Group(""))
	return s, router
}

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing %s: %v", rawURL, err)
	}
	return u.Hostname()
}

func doRequest(router *gin.Engine, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func playbackData(t *testing.T, rec *httptest.ResponseRecorder) types.PlaybackInfo {
	t.Helper()
	var info types.PlaybackInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding playback response: %v", err)
	}
	return info
}

func TestGetPlaybackMintsProxyURL(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: "http://provider.example.com/live/news.m3u8", Active: true,
	})
	_, router := testGateway(t, cat)

	rec := doRequest(router, "/stream/channel/42")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	data := playbackData(t, rec)
	if data.StreamType != "manifest" {
		t.Errorf("streamType = %q, want manifest", data.StreamType)
	}
	if data.Title != "News 24" {
		t.Errorf("title = %q", data.Title)
	}
	if !strings.HasPrefix(data.StreamURL, "http://gw.example.com:8080/stream/proxy/channel/42?token=") {
		t.Errorf("unexpected play URL: %s", data.StreamURL)
	}
}

func TestGetPlaybackErrors(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "1", Type: types.ResourceChannel, Title: "Off Air",
		StreamURL: "http://provider.example.com/live/1.ts", Active: false,
	})
	cat.Add(types.CatalogItem{
		ID: "2", Type: types.ResourceContent, Title: "Blockbuster",
		StreamURL: "http://provider.example.com/movie/2.mp4", Active: true, Premium: true,
	})
	_, router := testGateway(t, cat)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown type", "/stream/series/1", http.StatusBadRequest},
		{"missing item", "/stream/channel/999", http.StatusNotFound},
		{"inactive item", "/stream/channel/1", http.StatusForbidden},
		{"premium without role", "/stream/content/2?user=bob", http.StatusForbidden},
		{"premium anonymous", "/stream/content/2", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetPlaybackPremiumRole(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "2", Type: types.ResourceContent, Title: "Blockbuster",
		StreamURL: "http://provider.example.com/movie/2.mp4", Active: true, Premium: true,
	})
	_, router := testGateway(t, cat)

	rec := doRequest(router, "/stream/content/2?user=alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for premium user, body: %s", rec.Code, rec.Body.String())
	}
	if got := playbackData(t, rec).StreamType; got != "binary" {
		t.Errorf("streamType = %q, want binary", got)
	}
}

func TestProxyStreamRequiresToken(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: "http://provider.example.com/live/news.ts", Active: true,
	})
	s, router := testGateway(t, cat)

	if rec := doRequest(router, "/stream/proxy/channel/42"); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(router, "/stream/proxy/channel/42?token=garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}

	// A valid token for a different resource must not open this one.
	other, err := s.codec.Mint(types.ResourceChannel, "7", types.Caller{UserID: "bob"}, "provider.example.com")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rec := doRequest(router, "/stream/proxy/channel/42?token="+url.QueryEscape(other))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("cross-resource token: status = %d, want 401", rec.Code)
	}
}

func TestProxyStreamRelaysBinary(t *testing.T) {
	payload := strings.Repeat("ts-chunk-", 512)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		fmt.Fprint(w, payload)
	}))
	defer upstream.Close()

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: upstream.URL + "/live/news.ts", Active: true,
	})
	s, router := testGateway(t, cat)

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec := doRequest(router, "/stream/proxy/channel/42?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != payload {
		t.Errorf("relayed body does not match upstream payload (%d vs %d bytes)", rec.Body.Len(), len(payload))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestProxyStreamEnforcesPremiumRole(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "premium-bytes")
	}))
	defer upstream.Close()

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "9", Type: types.ResourceContent, Title: "Blockbuster",
		StreamURL: upstream.URL + "/movie/9.mp4", Active: true, Premium: true,
	})
	s, router := testGateway(t, cat)
	upstreamHost := hostOf(t, upstream.URL)

	// A valid token whose role is not premium-capable must not stream the
	// item, even though issuance would have been refused too.
	tok, err := s.codec.Mint(types.ResourceContent, "9", types.Caller{UserID: "bob", Role: types.RoleUser}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rec := doRequest(router, "/stream/proxy/content/9?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusForbidden {
		t.Errorf("plain role: status = %d, want 403", rec.Code)
	}

	tok, err = s.codec.Mint(types.ResourceContent, "9", types.Caller{UserID: "alice", Role: types.RolePremium}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rec = doRequest(router, "/stream/proxy/content/9?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("premium role: status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "premium-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProxyStreamRewritesManifest(t *testing.T) {
	manifest := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:6\n" +
		"#EXT-X-KEY:METHOD=AES-128,URI=\"keys/k1.bin\",IV=0xabc\n" +
		"#EXTINF:6.0,\n" +
		"seg_001.ts\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		fmt.Fprint(w, manifest)
	}))
	defer upstream.Close()

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: upstream.URL + "/live/index.m3u8", Active: true,
	})
	s, router := testGateway(t, cat)

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec := doRequest(router, "/stream/proxy/channel/42?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()

	if strings.Contains(body, "\nseg_001.ts\n") {
		t.Error("segment URI was not rewritten")
	}
	wantSeg := "http://gw.example.com:8080/stream/fetch?token=" + url.QueryEscape(tok) +
		"&url=" + url.QueryEscape(upstream.URL+"/live/seg_001.ts")
	if !strings.Contains(body, wantSeg) {
		t.Errorf("rewritten segment URL missing\nwant: %s\nbody:\n%s", wantSeg, body)
	}
	if !strings.Contains(body, "#EXT-X-KEY:METHOD=AES-128,URI=\"http://gw.example.com:8080/stream/fetch?") {
		t.Error("key URI was not rewritten in place")
	}
	if !strings.Contains(body, ",IV=0xabc") {
		t.Error("key directive attributes after URI were lost")
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestManifestByContentTypeHasWallClockBound(t *testing.T) {
	// No playlist extension, so the manifest is only recognised once the
	// upstream content type arrives. The handler then hangs mid body.
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer upstream.Close()
	defer close(release)

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: upstream.URL + "/live/playlist", Active: true,
	})
	s, router := testGateway(t, cat)
	s.relay = relay.New(relay.Options{ManifestTimeout: 50 * time.Millisecond})

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec := doRequest(router, "/stream/proxy/channel/42?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 after manifest deadline", rec.Code)
	}
}

func TestFetchChildScopedToBoundHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "segment-bytes")
	}))
	defer upstream.Close()

	s, router := testGateway(t, catalog.NewMemory())

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Bound host passes.
	rec := doRequest(router, "/stream/fetch?token="+url.QueryEscape(tok)+
		"&url="+url.QueryEscape(upstream.URL+"/seg_001.ts"))
	if rec.Code != http.StatusOK {
		t.Fatalf("bound host: status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "segment-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}

	// A token must not turn the gateway into an open proxy.
	rec = doRequest(router, "/stream/fetch?token="+url.QueryEscape(tok)+
		"&url="+url.QueryEscape("http://evil.example.com/anything"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign host: status = %d, want 403", rec.Code)
	}

	// A missing url is a client error, a missing token is an auth failure.
	if rec := doRequest(router, "/stream/fetch?token="+url.QueryEscape(tok)); rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d, want 400", rec.Code)
	}
	if rec := doRequest(router, "/stream/fetch?url=http%3A%2F%2Fx.example.com%2Fa"); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", rec.Code)
	}
}

func TestFetchChildRejectsPrivateTargets(t *testing.T) {
	s, router := testGateway(t, catalog.NewMemory())
	s.policy = guard.Policy{} // production stance: no private upstreams

	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, "provider.example.com")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	for _, target := range []string{
		"http://127.0.0.1:9090/admin",
		"http://169.254.169.254/latest/meta-data/",
		"http://192.168.1.1/router",
		"ftp://provider.example.com/file",
	} {
		rec := doRequest(router, "/stream/fetch?token="+url.QueryEscape(tok)+
			"&url="+url.QueryEscape(target))
		if rec.Code != http.StatusForbidden && rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 4xx rejection", target, rec.Code)
		}
	}
}

func TestStatusRequiresAPIKey(t *testing.T) {
	_, router := testGateway(t, catalog.NewMemory())

	if rec := doRequest(router, "/status"); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)
	req.Header.Set("X-API-Key", GetAPIKey())
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with key: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "\"status\":\"ok\"") {
		t.Errorf("unexpected status body: %s", rec.Body.String())
	}
}

func TestProxyStreamForwardsRange(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=0-99" {
			t.Errorf("upstream saw Range = %q", r.Header.Get("Range"))
		}
		w.Header().Set("Content-Range", "bytes 0-99/1000")
		w.WriteHeader(http.StatusPartialContent)
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer upstream.Close()

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "9", Type: types.ResourceContent, Title: "Movie",
		StreamURL: upstream.URL + "/movie/9.mp4", Active: true,
	})
	s, router := testGateway(t, cat)

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceContent, "9", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/stream/proxy/content/9?token="+url.QueryEscape(tok), nil)
	req.Header.Set("Range", "bytes=0-99")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 0-99/1000" {
		t.Errorf("Content-Range = %q", cr)
	}
}

func TestUpstreamErrorPassesThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cat := catalog.NewMemory()
	cat.Add(types.CatalogItem{
		ID: "42", Type: types.ResourceChannel, Title: "News 24",
		StreamURL: upstream.URL + "/live/index.m3u8", Active: true,
	})
	s, router := testGateway(t, cat)

	upstreamHost := hostOf(t, upstream.URL)
	tok, err := s.codec.Mint(types.ResourceChannel, "42", types.Caller{UserID: "bob"}, upstreamHost)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	rec := doRequest(router, "/stream/proxy/channel/42?token="+url.QueryEscape(tok))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 passthrough", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "stream/fetch") {
		t.Error("error body must not be rewritten")
	}
}
