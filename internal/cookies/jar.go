// Package cookies implements a durable cookie jar for the ecowatch client.
//
// It exists instead of net/http/cookiejar because the jar must survive
// process restarts and must parse responses that concatenate several
// cookies into a single Set-Cookie header value, including commas inside
// Expires date attributes.
package cookies

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ecowatch/ecowatch/internal/constants"

	"gopkg.in/yaml.v3"
)

// Cookie is one stored cookie. Cookies are keyed by (domain, path, name);
// the last write for a key wins.
//
// MaxAge follows the net/http convention: 0 means no Max-Age attribute,
// negative means delete now. Absorb resolves it into an absolute Expires,
// so stored cookies always carry their lifetime as a wall-clock deadline.
type Cookie struct {
	Name     string    `yaml:"name"`
	Value    string    `yaml:"value"`
	Domain   string    `yaml:"domain"`
	Path     string    `yaml:"path"`
	Expires  time.Time `yaml:"expires,omitempty"`
	MaxAge   int       `yaml:"max_age,omitempty"`
	Secure   bool      `yaml:"secure,omitempty"`
	HTTPOnly bool      `yaml:"http_only,omitempty"`
	SameSite string    `yaml:"same_site,omitempty"`
}

// expired reports whether the cookie is past its Expires time.
func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && c.Expires.Before(now)
}

// Jar stores cookies keyed by (domain, path, name) and persists them to a
// YAML snapshot so they survive restarts.
type Jar struct {
	mu      sync.Mutex
	path    string // snapshot file; empty disables persistence
	cookies map[string]Cookie
	logger  *slog.Logger
	now     func() time.Time
}

// SnapshotPath returns the default path of the cookie snapshot file.
func SnapshotPath(homeDir string) string {
	return filepath.Join(constants.ConfigDirPath(homeDir), constants.CookiesFileName)
}

// NewJar creates a Jar backed by the snapshot file at path. A missing or
// unreadable snapshot fails open to an empty jar.
func NewJar(path string, log *slog.Logger) *Jar {
	j := &Jar{
		path:    path,
		cookies: map[string]Cookie{},
		logger:  log,
		now:     time.Now,
	}

	if path == "" {
		return j
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug("failed to read cookie snapshot, starting empty", "path", path, "error", err)
		}
		return j
	}

	var stored []Cookie
	if err := yaml.Unmarshal(data, &stored); err != nil {
		log.Debug("failed to decode cookie snapshot, starting empty", "path", path, "error", err)
		return j
	}
	for _, c := range stored {
		j.cookies[cookieKey(c)] = c
	}
	return j
}

func cookieKey(c Cookie) string {
	return c.Domain + "|" + c.Path + "|" + c.Name
}

// Attach sets the Cookie request header from cookies stored for the URL's
// host. Lookup uses the full host (with port); if that yields nothing, it
// falls back to the bare hostname.
func (j *Jar) Attach(rawURL string, header http.Header) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	j.mu.Lock()
	matched := j.cookiesForHostLocked(u.Host)
	if len(matched) == 0 && u.Hostname() != u.Host {
		matched = j.cookiesForHostLocked(u.Hostname())
	}
	j.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	pairs := make([]string, 0, len(matched))
	for _, c := range matched {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	header.Set(constants.CookieHeader, strings.Join(pairs, "; "))
}

// cookiesForHostLocked returns unexpired cookies for the given host in a
// stable name order. Callers must hold j.mu.
func (j *Jar) cookiesForHostLocked(host string) []Cookie {
	now := j.now()
	var matched []Cookie
	for _, c := range j.cookies {
		if c.Domain == host && !c.expired(now) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].Name < matched[b].Name })
	return matched
}

// Absorb stores cookies from the response's Set-Cookie headers. Each header
// value may contain several comma-concatenated cookies. A malformed cookie
// is skipped without aborting the rest.
func (j *Jar) Absorb(rawURL string, resp *http.Response) {
	if resp == nil {
		return
	}
	values := resp.Header.Values(constants.SetCookieHeader)
	if len(values) == 0 {
		return
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}
	defaultDomain := u.Host
	defaultPath := u.Path
	if defaultPath == "" {
		defaultPath = "/"
	}

	j.mu.Lock()
	now := j.now()
	changed := false
	for _, value := range values {
		for _, raw := range SplitSetCookie(value) {
			c, parseErr := parseSetCookie(raw, defaultDomain, defaultPath)
			if parseErr != nil {
				j.logger.Debug("skipping malformed cookie", "error", parseErr)
				continue
			}
			// Max-Age takes precedence over Expires and counts from receipt.
			switch {
			case c.MaxAge < 0:
				delete(j.cookies, cookieKey(c))
				changed = true
				continue
			case c.MaxAge > 0:
				c.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
			}
			j.cookies[cookieKey(c)] = c
			changed = true
		}
	}
	var persistErr error
	if changed {
		persistErr = j.persistLocked()
	}
	j.mu.Unlock()

	if persistErr != nil {
		j.logger.Warn("failed to persist cookies", "error", persistErr)
	}
}

// Clear removes all cookies and the durable snapshot.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = map[string]Cookie{}
	return j.persistLocked()
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

// Get returns the cookie stored under (domain, path, name), if any.
func (j *Jar) Get(domain, path, name string) (Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[domain+"|"+path+"|"+name]
	return c, ok
}

// persistLocked writes the snapshot file. Callers must hold j.mu.
func (j *Jar) persistLocked() error {
	if j.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating cookie directory: %w", err)
	}

	stored := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}
	sort.Slice(stored, func(a, b int) bool {
		return cookieKey(stored[a]) < cookieKey(stored[b])
	})

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("error encoding cookies: %w", err)
	}
	if err := os.WriteFile(j.path, data, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error writing cookie snapshot: %w", err)
	}
	return nil
}
