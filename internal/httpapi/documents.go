package httpapi

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bruwbird/codex/internal/document"
	"github.com/bruwbird/codex/internal/settings"
	"github.com/jellydator/ttlcache/v3"
)

const documentCacheTTL = 10 * time.Minute

var (
	errOutsideWorkspace = errors.New("path is outside the workspace")
	errStatePath        = errors.New("path is inside the settings directory")
)

// documentCache hands out one *document.File per resolved path so that edits
// to the same file are serialized across requests.
type documentCache struct {
	root  string
	cache *ttlcache.Cache[string, *document.File]
	stop  sync.Once
}

func newDocumentCache(workspace string) (*documentCache, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	c := ttlcache.New[string, *document.File](
		ttlcache.WithTTL[string, *document.File](documentCacheTTL),
	)
	go c.Start()

	return &documentCache{root: root, cache: c}, nil
}

// Open resolves path against the workspace and returns the cached document
// for it. Paths that resolve outside the workspace are rejected.
func (d *documentCache) Open(path string) (*document.File, error) {
	resolved, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	if item := d.cache.Get(resolved); item != nil {
		return item.Value(), nil
	}

	f, err := document.OpenFile(resolved)
	if err != nil {
		return nil, err
	}
	// A concurrent first open may have won; use its document.
	item, _ := d.cache.GetOrSet(resolved, f)
	return item.Value(), nil
}

func (d *documentCache) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", errOutsideWorkspace)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(d.root, resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errOutsideWorkspace, path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideWorkspace, path)
	}
	if first, _, _ := strings.Cut(rel, string(filepath.Separator)); first == settings.StateDirName {
		return "", fmt.Errorf("%w: %s", errStatePath, path)
	}
	return resolved, nil
}

func (d *documentCache) Close() {
	d.stop.Do(d.cache.Stop)
}
