package xcfrontdoor

import (
	"net/http"
	"time"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/store"
)

type fakeCatalog struct {
	entries    []store.CatalogEntry
	categories map[string]int
	nextID     int
}

func newFakeCatalog(entries []store.CatalogEntry) *fakeCatalog {
	return &fakeCatalog{entries: entries, categories: map[string]int{}}
}

func (f *fakeCatalog) ListCatalogEntries() ([]store.CatalogEntry, error) {
	return f.entries, nil
}

func (f *fakeCatalog) CategoryXCID(category string) (int, error) {
	if id, ok := f.categories[category]; ok {
		return id, nil
	}
	f.nextID++
	f.categories[category] = f.nextID
	return f.nextID, nil
}

func (f *fakeCatalog) ContentIDForXCID(xcID int) (string, bool) {
	for _, e := range f.entries {
		if e.XCID == xcID {
			return e.ContentID, true
		}
	}
	return "", false
}

type fakeEPG struct{ doc []byte }

func (f fakeEPG) Condensed() []byte { return f.doc }

type fakeTokens struct{ ok bool }

func (f fakeTokens) Verify(token string) bool { return f.ok }

type fakeCreds struct {
	username, password string
}

func (f fakeCreds) VerifyCredentials(username, password string) error {
	if username == f.username && password == f.password {
		return nil
	}
	return apperr.New(apperr.Unauthorized, "invalid username or stream token")
}

type fakeResolver struct {
	gotXCStream, gotToken string
	called                bool
}

func (f *fakeResolver) ResolveXCStream(w http.ResponseWriter, r *http.Request, xcStream, token string, lookup func(int) (string, bool)) {
	f.called = true
	f.gotXCStream = xcStream
	f.gotToken = token
	w.WriteHeader(http.StatusOK)
}

func fixedEntry(xcID int, title string) store.CatalogEntry {
	return store.CatalogEntry{
		XCID:            xcID,
		ContentID:       "content-id",
		Title:           title,
		GroupTitle:      "News",
		LastScrapedTime: time.Unix(1700000000, 0),
	}
}
