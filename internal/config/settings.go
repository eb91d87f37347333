// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// Settings holds the runtime-mutable settings managed through the admin
// surface. The API key is stored encrypted when an encryptor is configured.
type Settings struct {
	PhotoProxyURL       string `json:"photo_proxy_url"`
	PhotoProxyAPIKey    string `json:"-"`
	EncryptedProxyKey   string `json:"photo_proxy_api_key_enc,omitempty"`
	PlaintextProxyKey   string `json:"photo_proxy_api_key,omitempty"`
}

// SettingsManager persists runtime settings to a JSON file with atomic
// write-then-rename. It layers on top of the immutable Config: a value set
// here takes precedence over the corresponding Config field.
type SettingsManager struct {
	mu        sync.RWMutex
	path      string
	encryptor *CredentialEncryptor
	current   Settings
}

// NewSettingsManager loads existing settings from disk if present. The
// encryptor may be nil, in which case the API key is stored in the clear
// (matching a deployment without an admin secret).
func NewSettingsManager(path string, encryptor *CredentialEncryptor) (*SettingsManager, error) {
	if path == "" {
		path = getEnv("SETTINGS_PATH", "/data/settings.json")
	}
	m := &SettingsManager{path: path, encryptor: encryptor}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if s.EncryptedProxyKey != "" && encryptor != nil {
		plain, err := encryptor.Decrypt(s.EncryptedProxyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stored photo-proxy key: %w", err)
		}
		s.PhotoProxyAPIKey = plain
	} else if s.PlaintextProxyKey != "" {
		s.PhotoProxyAPIKey = s.PlaintextProxyKey
	}

	m.current = s
	return m, nil
}

// PhotoProxy returns the effective proxy URL and API key: runtime settings
// first, then the boot configuration.
func (m *SettingsManager) PhotoProxy(cfg *PhotoProxyConfig) (url, apiKey string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, apiKey = cfg.URL, cfg.APIKey
	if m.current.PhotoProxyURL != "" {
		url = m.current.PhotoProxyURL
	}
	if m.current.PhotoProxyAPIKey != "" {
		apiKey = m.current.PhotoProxyAPIKey
	}
	return url, apiKey
}

// SetPhotoProxy stores new proxy credentials and persists them.
func (m *SettingsManager) SetPhotoProxy(url, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.PhotoProxyURL = url
	m.current.PhotoProxyAPIKey = apiKey
	return m.saveLocked()
}

// Snapshot returns the current settings with the API key masked for display.
func (m *SettingsManager) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]string{
		"photo_proxy_url":     m.current.PhotoProxyURL,
		"photo_proxy_api_key": MaskCredential(m.current.PhotoProxyAPIKey),
	}
}

// saveLocked writes the settings file atomically. Caller holds m.mu.
func (m *SettingsManager) saveLocked() error {
	out := Settings{PhotoProxyURL: m.current.PhotoProxyURL}

	if m.current.PhotoProxyAPIKey != "" {
		if m.encryptor != nil {
			enc, err := m.encryptor.Encrypt(m.current.PhotoProxyAPIKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt photo-proxy key: %w", err)
			}
			out.EncryptedProxyKey = enc
		} else {
			out.PlaintextProxyKey = m.current.PhotoProxyAPIKey
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(m.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
