package userstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUsers_MissingFileReturnsEmpty(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "users.json"))
	users, err := d.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("users = %+v, want empty", users)
	}
}

func TestUsers_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	body := `[{"username":"alice","stream_token":"tok-1"},{"username":"bob","stream_token":"tok-2"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	d := New(path)
	users, err := d.Users(context.Background())
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].StreamToken != "tok-2" {
		t.Fatalf("users = %+v", users)
	}
}
