// Package umeclient implements pool.UMEClient against a real upstream media
// engine: the get_version, manifest/session-start, stat, stop, and
// get_content_id endpoints named in the external interfaces.
package umeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/pool"
	"github.com/acerestreamer/gateway/internal/safeurl"
)

// Client talks to one UME instance at Address (e.g. "http://127.0.0.1:6878").
type Client struct {
	Address string
	HTTP    *http.Client
}

func New(address string, httpClient *http.Client) *Client {
	return &Client{Address: strings.TrimRight(address, "/"), HTTP: httpClient}
}

type versionResponse struct {
	Result struct {
		Version string `json:"version"`
	} `json:"result"`
}

// GetVersion calls {ume}/webui/api/service?method=get_version.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	u := c.Address + "/webui/api/service?method=get_version"
	var v versionResponse
	if err := c.getJSON(ctx, u, &v); err != nil {
		return "", err
	}
	return v.Result.Version, nil
}

type manifestResponse struct {
	Response *struct {
		PlaybackURL        string `json:"playback_url"`
		StatURL            string `json:"stat_url"`
		CommandURL         string `json:"command_url"`
		Infohash           string `json:"infohash"`
		PlaybackSessionID  string `json:"playback_session_id"`
		IsLive             bool   `json:"is_live"`
		IsEncrypted        bool   `json:"is_encrypted"`
		ClientSessionID    string `json:"client_session_id"`
	} `json:"response"`
	Error string `json:"error,omitempty"`
}

// StartSession calls {ume}/ace/manifest.m3u8?format=json&content_id=…&pid=…
// to allocate (or re-fetch) middleware info for an ace_pid.
func (c *Client) StartSession(ctx context.Context, contentID string, pid int) (*pool.MiddlewareInfo, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("content_id", contentID)
	q.Set("transcode_ac3", "0")
	q.Set("pid", strconv.Itoa(pid))
	u := c.Address + "/ace/manifest.m3u8?" + q.Encode()

	var mr manifestResponse
	if err := c.getJSON(ctx, u, &mr); err != nil {
		return nil, err
	}
	if mr.Error != "" {
		return nil, apperr.New(apperr.UpstreamUnreachable, "ume manifest error: "+mr.Error)
	}
	if mr.Response == nil {
		return nil, apperr.New(apperr.UpstreamUnreachable, "ume manifest response missing")
	}
	return &pool.MiddlewareInfo{
		PlaybackURL: mr.Response.PlaybackURL,
		StatURL:     mr.Response.StatURL,
		CommandURL:  mr.Response.CommandURL,
		Infohash:    mr.Response.Infohash,
	}, nil
}

// StopSession GETs commandURL?method=stop, best-effort.
func (c *Client) StopSession(ctx context.Context, commandURL string) error {
	if commandURL == "" {
		return nil
	}
	sep := "?"
	if strings.Contains(commandURL, "?") {
		sep = "&"
	}
	_, err := c.getBody(ctx, commandURL+sep+"method=stop")
	return err
}

// FetchBody GETs an arbitrary UME-origin URL (stat, playback, segment) and
// returns the raw body.
func (c *Client) FetchBody(ctx context.Context, u string) ([]byte, error) {
	return c.getBody(ctx, u)
}

// ContentIDForInfohash calls
// {ume}/server/api?api_version=3&method=get_content_id&infohash=….
func (c *Client) ContentIDForInfohash(ctx context.Context, infohash string) (string, error) {
	q := url.Values{}
	q.Set("api_version", "3")
	q.Set("method", "get_content_id")
	q.Set("infohash", infohash)
	u := c.Address + "/server/api?" + q.Encode()

	var cr struct {
		Result struct {
			ContentID string `json:"content_id"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, u, &cr); err != nil {
		return "", err
	}
	if cr.Result.ContentID == "" {
		return "", apperr.New(apperr.NotFound, "ume reported no content-id for infohash")
	}
	return cr.Result.ContentID, nil
}

// ContentIDResolverAdapter adapts a Client to the (string, bool, error)
// shape internal/scrape's ContentIDResolver expects: a NotFound apperr
// becomes ok=false with a nil error rather than an error the Aggregator
// would otherwise have to unwrap itself.
type ContentIDResolverAdapter struct{ Client *Client }

func (a ContentIDResolverAdapter) ContentIDForInfohash(ctx context.Context, infohash string) (string, bool, error) {
	contentID, err := a.Client.ContentIDForInfohash(ctx, infohash)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return contentID, true, nil
}

func (c *Client) getBody(ctx context.Context, u string) ([]byte, error) {
	if !safeurl.IsHTTPOrHTTPS(u) {
		return nil, apperr.New(apperr.BadInput, "refusing non-http(s) ume url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "build ume request", err)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnreachable, "ume request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnreachable, "reading ume response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.UpstreamUnreachable, fmt.Sprintf("ume status %d", resp.StatusCode))
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.getBody(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Wrap(apperr.UpstreamUnreachable, "decoding ume json", err)
	}
	return nil
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
