package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/configstore"
	"github.com/acerestreamer/gateway/internal/pool"
)

type fakePool struct {
	snapshot []pool.Entry
	removed  string
}

func (f *fakePool) Snapshot() []pool.Entry { return f.snapshot }

func (f *fakePool) Remove(ctx context.Context, contentID, caller string) error {
	f.removed = contentID
	return nil
}

func newAdminRouter(t *testing.T, token string) (http.Handler, *configstore.Store, *fakePool) {
	t.Helper()
	cs, err := configstore.Open(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := cs.Get()
	cfg.ExternalOrigin = "http://gw.example"
	cfg.UMEAddress = "http://127.0.0.1:6878"
	cfg.AdminToken = token
	if err := cs.Replace(cfg, time.Now); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	fp := &fakePool{}
	admin := &AdminAPI{Config: cs, Pool: fp}
	r := NewRouter(Config{Admin: admin}, zerolog.Nop())
	return r, cs, fp
}

func doAdmin(r http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdmin_RejectsMissingToken(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := doAdmin(r, http.MethodGet, "/api/admin/config", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdmin_RejectsWrongToken(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := doAdmin(r, http.MethodGet, "/api/admin/config", "nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdmin_EmptyConfiguredTokenDisablesSurface(t *testing.T) {
	r, _, _ := newAdminRouter(t, "")
	w := doAdmin(r, http.MethodGet, "/api/admin/config", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdmin_GetConfig_NeverLeaksAdminToken(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := doAdmin(r, http.MethodGet, "/api/admin/config", "secret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("secret")) {
		t.Errorf("response leaked admin token: %s", w.Body.String())
	}
}

func TestAdmin_PutConfig_IgnoresWireAdminToken(t *testing.T) {
	r, cs, _ := newAdminRouter(t, "secret")
	next := cs.Get()
	next.AdminToken = "attacker-supplied"
	next.ListenAddr = ":9999"
	body, _ := json.Marshal(next)

	w := doAdmin(r, http.MethodPut, "/api/admin/config", "secret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if cs.Get().AdminToken != "secret" {
		t.Errorf("admin token changed via config replace: %q", cs.Get().AdminToken)
	}
	if cs.Get().ListenAddr != ":9999" {
		t.Errorf("listen_addr not applied: %q", cs.Get().ListenAddr)
	}
}

func TestAdmin_TitleOverrides_PutGetDelete(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")

	w := doAdmin(r, http.MethodPut, "/api/admin/title-overrides/c1", "secret", []byte(`{"title":"Custom Name"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body=%s", w.Code, w.Body.String())
	}

	w = doAdmin(r, http.MethodGet, "/api/admin/title-overrides", "secret", nil)
	var overrides map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &overrides); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if overrides["c1"] != "Custom Name" {
		t.Fatalf("overrides = %+v", overrides)
	}

	w = doAdmin(r, http.MethodDelete, "/api/admin/title-overrides/c1", "secret", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
}

func TestAdmin_Pool_SnapshotAndDelete(t *testing.T) {
	r, _, fp := newAdminRouter(t, "secret")
	fp.snapshot = []pool.Entry{{AcePID: 1, ContentID: "c1"}}

	w := doAdmin(r, http.MethodGet, "/api/admin/pool", "secret", nil)
	var entries []pool.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].ContentID != "c1" {
		t.Fatalf("entries = %+v", entries)
	}

	w = doAdmin(r, http.MethodDelete, "/api/admin/pool/c1", "secret", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if fp.removed != "c1" {
		t.Errorf("removed = %q, want c1", fp.removed)
	}
}
