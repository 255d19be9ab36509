// Package assetcache keeps a versioned copy of the web shell assets in
// cache.db and serves them cache-first. It mirrors the three-phase lifecycle
// of the shell's offline cache: install populates the current version's
// bucket all-or-nothing, activate evicts every other version, and request
// handling answers from the cache, then from the live embedded assets, and
// finally falls back to the cached shell document so unknown routes stay
// navigable offline.
package assetcache

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmoraes/backfinance/internal/database"
)

// Version tags the current asset-set generation. Bump it whenever the shell
// assets change; activation then evicts the previous buckets.
const Version = "backfinance-cache-v2"

// ShellDocument is the root document served as the offline fallback.
const ShellDocument = "index.html"

// Assets is the fixed, enumerated list of shell assets. There is no dynamic
// asset discovery: install caches exactly these.
var Assets = []string{
	"index.html",
	"style.css",
	"app.js",
	"manifest.json",
	"icon-192.png",
	"icon-512.png",
}

// Config holds asset cache configuration.
type Config struct {
	DB      *sql.DB
	Source  fs.FS  // live shell assets (the "network" the cache falls back to)
	Version string // defaults to Version
	Log     zerolog.Logger
}

// Cache is the versioned shell asset cache.
type Cache struct {
	db      *sql.DB
	source  fs.FS
	version string
	log     zerolog.Logger
}

// New creates a new asset cache.
func New(cfg Config) *Cache {
	version := cfg.Version
	if version == "" {
		version = Version
	}
	return &Cache{
		db:      cfg.DB,
		source:  cfg.Source,
		version: version,
		log:     cfg.Log.With().Str("component", "assetcache").Logger(),
	}
}

// Install populates the current version's bucket with every listed asset.
// The population is all-or-nothing: a single unreadable asset fails the
// whole install and leaves the bucket unchanged.
func (c *Cache) Install() error {
	err := database.WithTransaction(c.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		for _, name := range Assets {
			body, err := fs.ReadFile(c.source, name)
			if err != nil {
				return fmt.Errorf("asset %s unavailable: %w", name, err)
			}

			_, err = tx.Exec(`
				INSERT INTO shell_assets (version, path, content_type, body, cached_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(version, path) DO UPDATE SET
					content_type = excluded.content_type,
					body = excluded.body,
					cached_at = excluded.cached_at
			`, c.version, name, contentType(name), body, now)
			if err != nil {
				return fmt.Errorf("failed to cache asset %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("asset cache install failed: %w", err)
	}

	c.log.Info().Str("version", c.version).Int("assets", len(Assets)).Msg("Asset cache installed")
	return nil
}

// Activate evicts every bucket whose version differs from the current one.
// Pure version-based eviction, no LRU; takes effect immediately.
func (c *Cache) Activate() error {
	res, err := c.db.Exec("DELETE FROM shell_assets WHERE version != ?", c.version)
	if err != nil {
		return fmt.Errorf("asset cache activate failed: %w", err)
	}

	if evicted, err := res.RowsAffected(); err == nil && evicted > 0 {
		c.log.Info().Str("version", c.version).Int64("evicted", evicted).Msg("Stale cache buckets evicted")
	}
	return nil
}

// Versions returns the distinct version tags currently stored.
func (c *Cache) Versions() ([]string, error) {
	rows, err := c.db.Query("SELECT DISTINCT version FROM shell_assets ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to list cache versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ServeHTTP answers shell requests cache-first: current bucket, then the
// live embedded asset, then the cached shell document as the offline
// fallback for uncached routes.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := normalize(r.URL.Path)

	if entry, err := c.lookup(name); err == nil {
		c.write(w, r, entry)
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		c.log.Warn().Err(err).Str("path", name).Msg("Cache lookup failed, trying live assets")
	}

	if body, err := fs.ReadFile(c.source, name); err == nil {
		c.write(w, r, &cachedAsset{contentType: contentType(name), body: body})
		return
	}

	// Both cache and live lookup missed: fall back to the cached shell so
	// the app stays navigable.
	if entry, err := c.lookup(ShellDocument); err == nil {
		c.write(w, r, entry)
		return
	}

	http.NotFound(w, r)
}

type cachedAsset struct {
	contentType string
	body        []byte
}

func (c *Cache) lookup(name string) (*cachedAsset, error) {
	entry := &cachedAsset{}
	err := c.db.QueryRow(
		"SELECT content_type, body FROM shell_assets WHERE version = ? AND path = ?",
		c.version, name,
	).Scan(&entry.contentType, &entry.body)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache) write(w http.ResponseWriter, r *http.Request, entry *cachedAsset) {
	w.Header().Set("Content-Type", entry.contentType)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(entry.body); err != nil {
		c.log.Debug().Err(err).Msg("Failed to write asset response")
	}
}

// normalize maps a request path onto an asset name. The root path serves
// the shell document.
func normalize(p string) string {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" || name == "." {
		return ShellDocument
	}
	return name
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
