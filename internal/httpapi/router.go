// Package httpapi wires the gateway's HTTP surface with
// github.com/go-chi/chi/v5, replacing the teacher's bare http.ServeMux and
// hand-rolled path parsing (internal/tuner/gateway.go's
// channelIDFromRequestPath) with chi's {param} routing — the natural fit
// for the XC path shapes this gateway serves, e.g.
// /{user}/{pass}/{xc_stream}.
package httpapi

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/hlsproxy"
	"github.com/acerestreamer/gateway/internal/obslog"
	"github.com/acerestreamer/gateway/internal/xcfrontdoor"
)

// HLSProxy is the narrow view of the HLS Reverse Proxy the router needs.
type HLSProxy interface {
	ServePlaylist(w http.ResponseWriter, r *http.Request, idOrInfohash, token string)
	ServeSegment(w http.ResponseWriter, r *http.Request, upstreamPath, token string)
}

var _ HLSProxy = (*hlsproxy.Proxy)(nil)

// Config wires every component the routed surface depends on. Fields left
// nil disable the routes that need them: zero-value Config yields a router
// exposing only /health.
type Config struct {
	Proxy      HLSProxy
	FrontDoor  *xcfrontdoor.FrontDoor
	Admin      *AdminAPI // nil disables the /api/admin/* surface
	TVGLogoDir string    // instanceDir/tvg_logos; empty disables /tvg-logo/{path}
	BuildInfo  BuildInfo

	AdminRateLimitRPS int // requests per minute per IP on the admin surface; 0 means 60
}

// BuildInfo fills GET /health's version fields. Left as the gateway's own
// concern rather than imported from a pack dependency: none of the example
// repos ship a version-reporting library, and the values are typically
// ldflags-injected at build time in this style of Go service (see the
// zero-value defaults applied by NewRouter).
type BuildInfo struct {
	Version     string
	VersionFull string
}

// NewRouter builds the full chi.Router for the gateway's HTTP surface.
func NewRouter(cfg Config, base zerolog.Logger) http.Handler {
	if cfg.BuildInfo.Version == "" {
		cfg.BuildInfo.Version = "dev"
	}
	if cfg.BuildInfo.VersionFull == "" {
		cfg.BuildInfo.VersionFull = cfg.BuildInfo.Version
	}
	log := obslog.For(base, "httpapi")

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(accessLog(log))

	r.Get("/health", serveHealth(cfg.BuildInfo))

	if cfg.Proxy != nil {
		r.Get("/hls/{id}", func(w http.ResponseWriter, r *http.Request) {
			cfg.Proxy.ServePlaylist(w, r, chi.URLParam(r, "id"), r.URL.Query().Get("token"))
		})
		r.Get("/hls/m/*", segmentHandler(cfg.Proxy, "/hls/m/"))
		r.Get("/hls/c/*", segmentHandler(cfg.Proxy, "/hls/c/"))
		r.Get("/ace/c/*", segmentHandler(cfg.Proxy, "/ace/c/"))
	}

	if cfg.FrontDoor != nil {
		fd := cfg.FrontDoor
		r.Get("/iptv", fd.ServeIPTVPlaylist)
		r.Get("/iptv.m3u", fd.ServeIPTVPlaylist)
		r.Get("/iptv.m3u8", fd.ServeIPTVPlaylist)
		r.Get("/epg.xml", fd.ServeEPG)
		r.Get("/player_api.php", fd.ServePlayerAPI)
		r.Get("/get.php", fd.ServeGetPHP)
		r.Get("/xmltv.php", fd.ServeXMLTVPHP)
		r.Get("/{user}/{pass}/{xcStream}", func(w http.ResponseWriter, r *http.Request) {
			fd.ServeXCStream(w, r, chi.URLParam(r, "user"), chi.URLParam(r, "pass"), chi.URLParam(r, "xcStream"))
		})
		r.Get("/live/{user}/{pass}/{xcStream}", func(w http.ResponseWriter, r *http.Request) {
			fd.ServeXCStream(w, r, chi.URLParam(r, "user"), chi.URLParam(r, "pass"), chi.URLParam(r, "xcStream"))
		})
	}

	if cfg.TVGLogoDir != "" {
		r.Get("/tvg-logo/{path}", serveTVGLogo(cfg.TVGLogoDir))
	}

	if cfg.Admin != nil {
		rps := cfg.AdminRateLimitRPS
		if rps <= 0 {
			rps = 60
		}
		r.Route("/api/admin", func(ar chi.Router) {
			ar.Use(httprate.LimitByIP(rps, adminRateLimitWindow))
			ar.Use(cfg.Admin.RequireAdminToken)
			cfg.Admin.Mount(ar)
		})
	}

	return r
}

func segmentHandler(proxy HLSProxy, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upstreamPath := strings.TrimPrefix(r.URL.Path, strings.TrimSuffix(prefix, "/"))
		proxy.ServeSegment(w, r, upstreamPath, r.URL.Query().Get("token"))
	}
}

func serveHealth(info BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, info)
	}
}

func serveTVGLogo(dir string) http.HandlerFunc {
	exts := []string{".png", ".jpg", ".jpeg", ".webp"}
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "path")
		clean := path.Base(name) // reject traversal; the slug never contains '/'
		ext := path.Ext(clean)
		if ext != "" {
			serveLogoFile(w, r, path.Join(dir, clean))
			return
		}
		for _, e := range exts {
			if serveLogoFileIfExists(w, r, path.Join(dir, clean+e)) {
				return
			}
		}
		apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "no logo for "+clean))
	}
}
