package httpapi

import (
	"net/http"
	"os"
)

// serveLogoFile serves a logo whose extension the caller already picked
// (the slug from the playlist/player_api title plus a known image suffix).
func serveLogoFile(w http.ResponseWriter, r *http.Request, fullPath string) {
	if !serveLogoFileIfExists(w, r, fullPath) {
		http.NotFound(w, r)
	}
}

// serveLogoFileIfExists tries one candidate extension, per the tvg-logo
// lookup's "try each known suffix in turn" fallback. Returns false without
// writing anything when the file is absent, so the caller can try the next
// extension.
func serveLogoFileIfExists(w http.ResponseWriter, r *http.Request, fullPath string) bool {
	f, err := os.Open(fullPath)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	http.ServeContent(w, r, fullPath, info.ModTime(), f)
	return true
}
