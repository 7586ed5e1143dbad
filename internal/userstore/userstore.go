// Package userstore implements the external user store internal/tokenauth
// reads from: a small operator-maintained JSON file listing every XC
// username and its stream token. The real "external user store" spec.md
// describes is explicitly out of this gateway's scope (it issues and owns
// tokens elsewhere); this is the minimal stand-in an operator populates by
// hand, read fresh on every tokenauth cache miss.
package userstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/acerestreamer/gateway/internal/tokenauth"
)

// Directory implements tokenauth.UserDirectory over a JSON file of the
// shape `[{"username": "...", "stream_token": "..."}, ...]`.
type Directory struct {
	path string
}

func New(path string) *Directory {
	return &Directory{path: path}
}

type userRecord struct {
	Username    string `json:"username"`
	StreamToken string `json:"stream_token"`
}

// Users reads and parses the file on every call, matching
// tokenauth.Verifier's own "only called on a cache miss" cadence — there
// is no reason to cache a second time in front of a local file read. A
// missing file is treated as zero users rather than an error, so a fresh
// instance with no users.json yet simply rejects every request.
func (d *Directory) Users(ctx context.Context) ([]tokenauth.User, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("userstore: read %s: %w", d.path, err)
	}

	var records []userRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("userstore: parse %s: %w", d.path, err)
	}

	out := make([]tokenauth.User, 0, len(records))
	for _, r := range records {
		out = append(out, tokenauth.User{Username: r.Username, StreamToken: r.StreamToken})
	}
	return out, nil
}
