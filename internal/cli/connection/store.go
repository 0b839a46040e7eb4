// Package connection stores the wirecachectl server connection: the daemon
// URL and the bearer token issued for it.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// configDirName is the directory for wirecachectl configuration under
	// the user config dir.
	configDirName = "wirecachectl"
	// configFileName is the name of the connection file.
	configFileName = "connection.json"

	filePermissions = 0600
	dirPermissions  = 0700
)

// ErrNotConnected indicates no connection has been saved yet.
var ErrNotConnected = errors.New("no server connection saved - run 'wirecachectl connect' first")

// Connection is the saved server connection.
type Connection struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token,omitempty"`
}

// Store manages the saved connection on disk.
type Store struct {
	path string
}

// NewStore creates a connection store rooted at the user config dir.
func NewStore() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w", err)
	}
	return &Store{path: filepath.Join(dir, configDirName, configFileName)}, nil
}

// NewStoreAt creates a connection store at an explicit path. Used by tests.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load reads the saved connection. Returns ErrNotConnected if none exists.
func (s *Store) Load() (*Connection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("failed to read connection file: %w", err)
	}

	var conn Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("failed to parse connection file: %w", err)
	}
	if conn.ServerURL == "" {
		return nil, ErrNotConnected
	}
	return &conn, nil
}

// Save writes the connection with owner-only permissions; it may carry a
// bearer token.
func (s *Store) Save(conn *Connection) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(conn, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if err := os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write connection file: %w", err)
	}
	return nil
}

// Clear removes the saved connection.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove connection file: %w", err)
	}
	return nil
}
