package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/config"
	"github.com/acerestreamer/gateway/internal/configstore"
	"github.com/acerestreamer/gateway/internal/pool"
)

// Pool is the narrow view of the Session Pool the admin surface needs.
type Pool interface {
	Snapshot() []pool.Entry
	Remove(ctx context.Context, contentID, caller string) error
}

var _ Pool = (*pool.Pool)(nil)

// AdminAPI implements the JSON management surface: config get/replace,
// scrape source CRUD, content-id title overrides, and pool introspection
// plus forced eviction. Every route here sits behind RequireAdminToken and
// the router's per-IP rate limiter.
type AdminAPI struct {
	Config *configstore.Store
	Pool   Pool
}

// RequireAdminToken checks the Authorization: Bearer <token> header against
// the configured admin token. An empty configured token disables the
// surface entirely (every request is rejected), since the teacher's own
// config.Default leaves AdminToken unset until an operator sets it.
func (a *AdminAPI) RequireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := a.Config.Get().AdminToken
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if want == "" || got != want {
			apperr.WriteHTTP(w, apperr.New(apperr.Unauthorized, "missing or invalid admin token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Mount registers the admin routes on r.
func (a *AdminAPI) Mount(r chi.Router) {
	r.Get("/config", a.getConfig)
	r.Put("/config", a.putConfig)

	r.Get("/scrape-sources", a.getScrapeSources)
	r.Put("/scrape-sources", a.putScrapeSources)

	r.Get("/title-overrides", a.getTitleOverrides)
	r.Put("/title-overrides/{contentID}", a.putTitleOverride)
	r.Delete("/title-overrides/{contentID}", a.deleteTitleOverride)

	r.Get("/pool", a.getPool)
	r.Delete("/pool/{contentID}", a.deletePoolEntry)
}

func (a *AdminAPI) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Config.Get())
}

func (a *AdminAPI) putConfig(w http.ResponseWriter, r *http.Request) {
	var next config.AppConfig
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "decode config", err))
		return
	}
	// AdminToken is never accepted from the wire: json:"-" means it never
	// decoded in the first place, so the in-force token always survives a
	// config replace untouched.
	next.AdminToken = a.Config.Get().AdminToken
	if err := a.Config.Replace(next, time.Now); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "invalid config", err))
		return
	}
	writeJSON(w, a.Config.Get())
}

func (a *AdminAPI) getScrapeSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Config.Get().Scraper.Sources)
}

func (a *AdminAPI) putScrapeSources(w http.ResponseWriter, r *http.Request) {
	var sources []config.SourceConfig
	if err := json.NewDecoder(r.Body).Decode(&sources); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "decode scrape sources", err))
		return
	}
	next := a.Config.Get()
	next.Scraper.Sources = sources
	if err := a.Config.Replace(next, time.Now); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "invalid config", err))
		return
	}
	writeJSON(w, next.Scraper.Sources)
}

func (a *AdminAPI) getTitleOverrides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Config.Get().TitleOverrides)
}

func (a *AdminAPI) putTitleOverride(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "decode title override", err))
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		apperr.WriteHTTP(w, apperr.New(apperr.BadInput, "title: required"))
		return
	}

	next := a.Config.Get()
	if next.TitleOverrides == nil {
		next.TitleOverrides = make(map[string]string)
	} else {
		clone := make(map[string]string, len(next.TitleOverrides))
		for k, v := range next.TitleOverrides {
			clone[k] = v
		}
		next.TitleOverrides = clone
	}
	next.TitleOverrides[contentID] = body.Title
	if err := a.Config.Replace(next, time.Now); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "invalid config", err))
		return
	}
	writeJSON(w, map[string]string{"content_id": contentID, "title": body.Title})
}

func (a *AdminAPI) deleteTitleOverride(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	next := a.Config.Get()
	if _, ok := next.TitleOverrides[contentID]; !ok {
		apperr.WriteHTTP(w, apperr.New(apperr.NotFound, "no title override for "+contentID))
		return
	}
	clone := make(map[string]string, len(next.TitleOverrides))
	for k, v := range next.TitleOverrides {
		if k != contentID {
			clone[k] = v
		}
	}
	next.TitleOverrides = clone
	if err := a.Config.Replace(next, time.Now); err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.BadInput, "invalid config", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *AdminAPI) getPool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Pool.Snapshot())
}

func (a *AdminAPI) deletePoolEntry(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	if err := a.Pool.Remove(r.Context(), contentID, "admin"); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TitleOverrideLookup adapts a configstore.Store into the func signature
// xcfrontdoor.FrontDoor.TitleOverride expects, read fresh on every lookup
// so an admin override takes effect without restarting the front-door.
func TitleOverrideLookup(cs *configstore.Store) func(contentID string) (string, bool) {
	return func(contentID string) (string, bool) {
		title, ok := cs.Get().TitleOverrides[contentID]
		return title, ok
	}
}
