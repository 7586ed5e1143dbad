package epg

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// refreshSource downloads src's body, decompressing it first when
// Format == "xml.gz", and writes the result to SavedFilePath via a
// temp-file-then-rename so a crash mid-write never leaves a truncated
// guide file behind.
func refreshSource(ctx context.Context, client *http.Client, src *Source, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("epg source %s: http status %d", src.URL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(src.Format, "xml.gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("epg source %s: gzip: %w", src.URL, err)
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("epg source %s: read: %w", src.URL, err)
	}

	if err := writeFileAtomic(src.SavedFilePath, data); err != nil {
		return err
	}
	src.markUpdated(now)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".epg-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
