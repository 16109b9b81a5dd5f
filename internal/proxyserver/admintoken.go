package proxyserver

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateAdminToken returns the admin token persisted at path
// (checked against the X-Admin-Token header on destructive routes),
// generating and persisting a fresh one (mode 0600) the first time the
// file doesn't exist.
func LoadOrCreateAdminToken(path string) (string, error) {
	if existing, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(existing)), nil
	}

	token, err := generateToken(32)
	if err != nil {
		return "", fmt.Errorf("generating admin token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating admin token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("writing admin token: %w", err)
	}
	return token, nil
}

func generateToken(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
