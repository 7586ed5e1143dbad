// Package xcfrontdoor implements the IPTV / XC Front-Door: the IPTV
// playlist, condensed XMLTV, and the Xtream-Codes player_api.php subset
// that XC-speaking clients (TiviMate, etc.) expect in front of the
// catalog. Handlers are plain http.HandlerFunc-shaped methods; wiring
// them to routes is internal/httpapi's job.
package xcfrontdoor

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/store"
)

// Catalog is the narrow view of persistence this component needs.
type Catalog interface {
	ListCatalogEntries() ([]store.CatalogEntry, error)
	CategoryXCID(category string) (int, error)
	ContentIDForXCID(xcID int) (string, bool)
}

// StreamResolver is the narrow view of the HLS Reverse Proxy this
// component needs to serve XC-style stream requests.
type StreamResolver interface {
	ResolveXCStream(w http.ResponseWriter, r *http.Request, xcStream, token string, lookup func(xcID int) (contentID string, ok bool))
}

// EPGSource is the narrow view of the EPG Merger this component needs.
type EPGSource interface {
	Condensed() []byte
}

// TokenVerifier is the narrow view of the Stream-Token Verifier this
// component needs for the token-query-param endpoints.
type TokenVerifier interface {
	Verify(token string) bool
}

// CredentialVerifier is the narrow view of the Stream-Token Verifier this
// component needs for the (username, password) XC endpoints.
type CredentialVerifier interface {
	VerifyCredentials(username, password string) error
}

// FrontDoor implements the IPTV / XC Front-Door component.
type FrontDoor struct {
	Catalog        Catalog
	EPG            EPGSource
	Tokens         TokenVerifier
	Credentials    CredentialVerifier
	Proxy          StreamResolver
	ExternalOrigin string
	ServerInfo     ServerInfo

	// TitleOverride looks up an admin-assigned display title for a content
	// id, returning ok=false when none is set. Left nil to disable
	// overrides entirely.
	TitleOverride func(contentID string) (string, bool)

	log zerolog.Logger
}

// ServerInfo fills the XC server_info block returned by the bare
// player_api.php call. The fields this gateway does not model (e.g.
// timezone, process id) get fixed placeholder values, matching the subset
// of the XC protocol spec.md §4.I actually asks for.
type ServerInfo struct {
	URL       string // host:port XC clients display, without scheme
	HTTPSPort string
	Port      string
}

func New(catalog Catalog, epg EPGSource, tokens TokenVerifier, creds CredentialVerifier, proxy StreamResolver, externalOrigin string, info ServerInfo, base zerolog.Logger) *FrontDoor {
	return &FrontDoor{
		Catalog:        catalog,
		EPG:            epg,
		Tokens:         tokens,
		Credentials:    creds,
		Proxy:          proxy,
		ExternalOrigin: externalOrigin,
		ServerInfo:     info,
		log:            obslog.For(base, "xcfrontdoor"),
	}
}

// ServeXCStream handles GET /{user}/{pass}/{xc_stream} and
// GET /live/{user}/{pass}/{xc_stream}. The XC protocol's password slot is
// exactly the user's stream_token (per spec.md §4.I's credential check),
// so once credentials are verified the password doubles as the stream
// token ResolveXCStream/hlsproxy.Proxy expects.
func (f *FrontDoor) ServeXCStream(w http.ResponseWriter, r *http.Request, username, password, xcStream string) {
	if err := f.Credentials.VerifyCredentials(username, password); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	f.Proxy.ResolveXCStream(w, r, xcStream, password, f.Catalog.ContentIDForXCID)
}

// ServeIPTVPlaylist handles GET /iptv[.m3u[8]]?token=….
func (f *FrontDoor) ServeIPTVPlaylist(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !f.Tokens.Verify(token) {
		apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "invalid stream token"))
		return
	}
	f.writePlaylist(w, token)
}

// ServeEPG handles GET /epg.xml?token=….
func (f *FrontDoor) ServeEPG(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !f.Tokens.Verify(token) {
		apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "invalid stream token"))
		return
	}
	f.writeEPG(w)
}

// ServeGetPHP handles GET /get.php?type=m3u_plus&username=&password=. Only
// type=m3u_plus is recognised; any other type is rejected as bad input
// since the catalog has no VOD/series sections to render.
func (f *FrontDoor) ServeGetPHP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := f.Credentials.VerifyCredentials(q.Get("username"), q.Get("password")); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	if t := q.Get("type"); t != "" && t != "m3u_plus" {
		apperr.WriteHTTP(w, apperr.New(apperr.BadInput, "unsupported get.php type: "+t))
		return
	}
	f.writePlaylist(w, "")
}

// ServeXMLTVPHP handles GET /xmltv.php?username=&password=.
func (f *FrontDoor) ServeXMLTVPHP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := f.Credentials.VerifyCredentials(q.Get("username"), q.Get("password")); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	f.writeEPG(w)
}

func (f *FrontDoor) writePlaylist(w http.ResponseWriter, token string) {
	entries, err := f.Catalog.ListCatalogEntries()
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "list catalog entries", err))
		return
	}
	entries = f.applyTitleOverrides(entries)
	body := BuildPlaylist(entries, f.ExternalOrigin, token)
	w.Header().Set("Content-Type", "audio/x-mpegurl; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}

// applyTitleOverrides returns a copy of entries with any admin-assigned
// display titles substituted in; the originals (and the backing store) are
// left untouched.
func (f *FrontDoor) applyTitleOverrides(entries []store.CatalogEntry) []store.CatalogEntry {
	if f.TitleOverride == nil {
		return entries
	}
	out := make([]store.CatalogEntry, len(entries))
	for i, e := range entries {
		if title, ok := f.TitleOverride(e.ContentID); ok {
			e.Title = title
		}
		out[i] = e
	}
	return out
}

func (f *FrontDoor) writeEPG(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(f.EPG.Condensed())
}
