package auth

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"sync"

	"github.com/ecowatch/ecowatch/internal/constants"

	"github.com/spf13/viper"
)

// Keys used in the durable credentials file.
const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
	userIDKey       = "user_id"
)

// CookieClearer is the part of the cookie jar the store needs for logout.
type CookieClearer interface {
	Clear() error
}

// Store persists access and refresh tokens plus the authenticated user id in
// a durable key-value file, and notifies registered listeners on auth changes.
//
// Notification contract: exactly one notification fires per logical Save or
// Clear, after the new state is durably persisted, so listeners that
// immediately re-read never observe a stale value.
type Store struct {
	mu        sync.Mutex
	path      string
	values    map[string]string
	cookies   CookieClearer
	logger    *slog.Logger
	listeners []func(accessToken string)
}

// CredentialsPath returns the default path of the credentials file.
func CredentialsPath() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("error getting current user: %w", err)
	}
	return filepath.Join(constants.ConfigDirPath(currentUser.HomeDir), constants.CredentialsFileName), nil
}

// NewStore creates a Store backed by the file at path. Read errors are
// swallowed: the store starts logged out rather than failing.
// The cookie jar may be nil.
func NewStore(path string, cookies CookieClearer, log *slog.Logger) *Store {
	s := &Store{
		path:    path,
		values:  map[string]string{},
		cookies: cookies,
		logger:  log,
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			log.Debug("failed to read credentials file, starting logged out", "path", path, "error", err)
		}
		return s
	}

	for _, key := range []string{accessTokenKey, refreshTokenKey, userIDKey} {
		if value := v.GetString(key); value != "" {
			s.values[key] = value
		}
	}
	return s
}

// OnChange registers a listener invoked after every logical Save or Clear.
// The listener receives the new access token, or "" when signed out.
func (s *Store) OnChange(fn func(accessToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Save persists the access token and then notifies listeners.
func (s *Store) Save(accessToken string) error {
	s.mu.Lock()
	s.values[accessTokenKey] = accessToken
	err := s.persistLocked()
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, fn := range listeners {
		fn(accessToken)
	}
	return nil
}

// Load returns the stored access token, or "" if none.
func (s *Store) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[accessTokenKey]
}

// SaveRefresh persists the refresh token. No notification fires: refresh
// token rotation is not an auth state change visible to the UI.
func (s *Store) SaveRefresh(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[refreshTokenKey] = token
	return s.persistLocked()
}

// LoadRefresh returns the stored refresh token, or "" if none.
func (s *Store) LoadRefresh() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[refreshTokenKey]
}

// ClearRefresh removes the refresh token.
func (s *Store) ClearRefresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, refreshTokenKey)
	return s.persistLocked()
}

// SaveUserID persists the authenticated user id.
func (s *Store) SaveUserID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[userIDKey] = id
	return s.persistLocked()
}

// LoadUserID returns the stored user id, or "" if none.
func (s *Store) LoadUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[userIDKey]
}

// Clear removes both tokens, the user id, and all cookies as one logical
// operation, then notifies listeners exactly once with an empty token.
func (s *Store) Clear() error {
	s.mu.Lock()
	delete(s.values, accessTokenKey)
	delete(s.values, refreshTokenKey)
	delete(s.values, userIDKey)
	err := s.persistLocked()
	listeners := s.snapshotListenersLocked()
	cookies := s.cookies
	logger := s.logger
	s.mu.Unlock()

	if cookies != nil {
		if cookieErr := cookies.Clear(); cookieErr != nil {
			logger.Warn("failed to clear cookies on logout", "error", cookieErr)
		}
	}

	for _, fn := range listeners {
		fn("")
	}
	return err
}

// persistLocked writes the current values to disk. Callers must hold s.mu.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating credentials directory: %w", err)
	}

	v := viper.New()
	for key, value := range s.values {
		v.Set(key, value)
	}

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("error writing credentials file: %w", err)
	}
	if err := os.Chmod(s.path, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting credentials file permissions: %w", err)
	}
	return nil
}

func (s *Store) snapshotListenersLocked() []func(string) {
	listeners := make([]func(string), len(s.listeners))
	copy(listeners, s.listeners)
	return listeners
}
