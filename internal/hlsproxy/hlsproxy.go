// Package hlsproxy implements the HLS Reverse Proxy: playlist rewriting and
// segment/ancillary forwarding in front of the upstream media engine.
package hlsproxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mogiioin/hls-m3u8/m3u8"
	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/httpclient"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/quality"
	"github.com/acerestreamer/gateway/internal/streamid"
)

// PoolLookup is the narrow view of the Session Pool this component needs.
type PoolLookup interface {
	GetHLSURL(ctx context.Context, contentID string) (string, error)
}

// IDResolver maps an infohash to its content-id per (H)'s bidirectional
// mapping. Implementations resolve a content-id to itself.
type IDResolver interface {
	ResolveContentID(ctx context.Context, idOrInfohash string) (string, bool)
}

// TokenVerifier is the narrow view of the Stream-Token Verifier this
// component needs.
type TokenVerifier interface {
	Verify(token string) bool
}

// upstreamPathPrefixes are the UME-origin paths that a playlist line may
// reference and that must be rewritten to the gateway's external origin.
var upstreamPathPrefixes = []string{"/ace/c/", "/hls/c/", "/hls/m/"}

// dropHeaders are upstream response headers never copied through, because
// the proxy rewrites the body (content-length, content-encoding) or owns
// the connection lifecycle itself.
var dropHeaders = map[string]bool{
	"content-encoding":  true,
	"content-length":    true,
	"transfer-encoding": true,
	"connection":        true,
	"keep-alive":        true,
}

// Proxy implements the HLS Reverse Proxy component.
type Proxy struct {
	Pool         PoolLookup
	Resolver     IDResolver
	Tokens       TokenVerifier
	Quality      quality.Sink
	ExternalBase string
	UpstreamBase string
	Client       *http.Client

	log zerolog.Logger
}

// New builds a Proxy. externalBase is the gateway's own public origin
// (e.g. "http://gw.example"); upstreamBase is the UME origin whose paths
// playlist lines reference (e.g. "http://127.0.0.1:6878").
func New(pool PoolLookup, resolver IDResolver, tokens TokenVerifier, q quality.Sink, externalBase, upstreamBase string, base zerolog.Logger) *Proxy {
	return &Proxy{
		Pool:         pool,
		Resolver:     resolver,
		Tokens:       tokens,
		Quality:      q,
		ExternalBase: strings.TrimRight(externalBase, "/"),
		UpstreamBase: strings.TrimRight(upstreamBase, "/"),
		Client:       httpclient.ForStreaming(),
		log:          obslog.For(base, "hlsproxy"),
	}
}

// ServePlaylist handles GET /hls/{content-or-infohash}?token=….
func (p *Proxy) ServePlaylist(w http.ResponseWriter, r *http.Request, idOrInfohash, token string) {
	if !p.Tokens.Verify(token) {
		apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "invalid stream token"))
		return
	}
	if !streamid.ValidContentID(idOrInfohash) && !streamid.ValidInfohash(idOrInfohash) {
		apperr.WriteHTTP(w, apperr.New(apperr.BadInput, "malformed content id"))
		return
	}
	contentID, ok := p.Resolver.ResolveContentID(r.Context(), idOrInfohash)
	if !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "unknown content id"))
		return
	}

	playbackURL, err := p.Pool.GetHLSURL(r.Context(), contentID)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	if playbackURL == "" {
		apperr.WriteHTTP(w, apperr.New(apperr.UpstreamUnreachable, "pool returned no playback url"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playbackURL, nil)
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "build upstream playlist request", err))
		return
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		p.Quality.Observe(contentID, "", true)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			apperr.WriteHTTP(w, apperr.Wrap(apperr.UpstreamTimeout, "playlist fetch timed out", err))
			return
		}
		apperr.WriteHTTP(w, apperr.Wrap(apperr.UpstreamUnreachable, "playlist fetch failed", err))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.Quality.Observe(contentID, "", true)
		apperr.WriteHTTP(w, apperr.Wrap(apperr.UpstreamUnreachable, "reading playlist body", err))
		return
	}
	if !bytes.Contains(body, []byte("#EXTM3U")) {
		p.Quality.Observe(contentID, "", true)
		apperr.WriteHTTP(w, apperr.New(apperr.BadInput, "upstream body is not an HLS playlist"))
		return
	}

	rewritten, rwErr := p.rewrite(body, token)
	if rwErr != nil {
		p.log.Warn().Err(rwErr).Str("content_id", contentID).Msg("playlist decode failed, passing body through unrewritten")
		rewritten = body
	}

	p.Quality.Observe(contentID, string(rewritten), false)

	for k, vv := range resp.Header {
		if dropHeaders[strings.ToLower(k)] {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rewritten)
}

// rewrite decodes body with the pack's m3u8 library, rewrites every
// segment/variant URI that references the UME origin to the gateway's
// external origin (stamping the stream token), and re-encodes. Lines
// naming #EXT-X-MEDIA alternates are dropped before decode: the library
// only models that tag as MasterPlaylist.Alternatives, with no hook to
// suppress it from MediaPlaylist output, so a media-playlist-embedded
// EXT-X-MEDIA line is stripped textually first.
func (p *Proxy) rewrite(body []byte, token string) ([]byte, error) {
	filtered := dropExtXMediaLines(body)
	pl, listType, err := m3u8.Decode(*bytes.NewBuffer(filtered), false)
	if err != nil {
		return nil, err
	}
	switch listType {
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, errors.New("hlsproxy: decode reported MEDIA but returned a different type")
		}
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			seg.URI = p.rewriteURI(seg.URI, token)
		}
		media.ResetCache()
		return media.Encode().Bytes(), nil
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, errors.New("hlsproxy: decode reported MASTER but returned a different type")
		}
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			v.URI = p.rewriteURI(v.URI, token)
		}
		master.ResetCache()
		return master.Encode().Bytes(), nil
	default:
		return nil, errors.New("hlsproxy: unrecognised playlist type")
	}
}

// rewriteURI rewrites a playlist line reference: absolute URLs whose path
// starts with one of the UME-origin prefixes are repointed at the external
// origin; everything else passes through untouched. The stream token is
// appended as a query parameter iff non-empty.
func (p *Proxy) rewriteURI(raw, token string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	} else if !strings.HasPrefix(raw, "/") {
		// Relative reference against the upstream base; resolve it first so
		// the prefix check below has a path to match against.
		if base, berr := url.Parse(p.UpstreamBase + "/"); berr == nil {
			if ref, rerr := url.Parse(raw); rerr == nil {
				resolved := base.ResolveReference(ref)
				path = resolved.Path
				if resolved.RawQuery != "" {
					path += "?" + resolved.RawQuery
				}
			}
		}
	}

	matched := false
	for _, prefix := range upstreamPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return raw
	}

	out := p.ExternalBase + path
	if token != "" {
		sep := "?"
		if strings.Contains(out, "?") {
			sep = "&"
		}
		out += sep + "token=" + url.QueryEscape(token)
	}
	return out
}

func dropExtXMediaLines(body []byte) []byte {
	lines := bytes.Split(body, []byte("\n"))
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("#EXT-X-MEDIA:")) {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}

// ServeSegment handles GET /ace/c/**, /hls/c/**, /hls/m/**: forward to the
// corresponding UME path (deduplicating slashes), copy body and status,
// forcing Content-Type: video/MP2T on /ace/c/.
func (p *Proxy) ServeSegment(w http.ResponseWriter, r *http.Request, upstreamPath, token string) {
	if !p.Tokens.Verify(token) {
		apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "invalid stream token"))
		return
	}

	target := p.UpstreamBase + dedupSlashes("/"+strings.TrimPrefix(upstreamPath, "/"))
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "build upstream segment request", err))
		return
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.UpstreamUnreachable, "segment fetch failed", err))
		return
	}
	defer resp.Body.Close()

	for k, vv := range resp.Header {
		if dropHeaders[strings.ToLower(k)] {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if strings.HasPrefix(upstreamPath, "/ace/c/") {
		w.Header().Set("Content-Type", "video/MP2T")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func dedupSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// ResolveXCStream implements the XC m3u8 resolution shim: strip the file
// extension from xcStream, parse it as the integer xc_id, resolve it to a
// content-id via lookup, and delegate to ServePlaylist.
func (p *Proxy) ResolveXCStream(w http.ResponseWriter, r *http.Request, xcStream, token string, lookup func(xcID int) (contentID string, ok bool)) {
	name := xcStream
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	xcID, err := strconv.Atoi(name)
	if err != nil {
		apperr.WriteHTTP(w, apperr.New(apperr.BadInput, "xc_stream is not an integer id"))
		return
	}
	contentID, ok := lookup(xcID)
	if !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "unknown xc stream id"))
		return
	}
	p.ServePlaylist(w, r, contentID, token)
}
