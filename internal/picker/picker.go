// Package picker provides the media-selection surface behind the upload
// bridge. A Picker yields the location of one picked item, or nothing when
// the session is cancelled.
package picker

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result is one picked media item.
type Result struct {
	// Location of the picked item, as a URL the page can reference.
	Location string `json:"location"`
}

// Picker presents a media-selection session. A nil Result with a nil error
// means the session was cancelled; cancellation is a normal outcome, not an
// error.
type Picker interface {
	Present(ctx context.Context) (*Result, error)
}

var defaultExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "heic"}

// PhotoLibrary picks from a directory of photos. It models the kiosk's photo
// library: the most recently added photo wins, an empty library behaves like
// a cancelled session.
type PhotoLibrary struct {
	dir  string
	exts map[string]struct{}
}

func NewPhotoLibrary(dir string, extensions []string) *PhotoLibrary {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return &PhotoLibrary{dir: dir, exts: exts}
}

// Present resolves the newest photo in the library as a file URL.
func (l *PhotoLibrary) Present(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read photo library: %w", err)
	}

	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !l.accepts(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = entry.Name()
			newestTime = info.ModTime()
		}
	}

	if newest == "" {
		return nil, nil
	}

	abs, err := filepath.Abs(filepath.Join(l.dir, newest))
	if err != nil {
		return nil, fmt.Errorf("resolve photo path: %w", err)
	}
	loc := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return &Result{Location: loc.String()}, nil
}

func (l *PhotoLibrary) accepts(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := l.exts[ext]
	return ok
}
