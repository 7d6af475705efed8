package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"terrainstream/internal/config"
)

const (
	envConfigJSON    = "TERRAIN_CONFIG_JSON"
	envConfigYAMLB64 = "TERRAIN_CONFIG_YAML_B64"
)

// envPayload returns the configuration document handed over through the
// environment and its format. JSON wins when both are set.
func envPayload() ([]byte, string, error) {
	if doc := os.Getenv(envConfigJSON); doc != "" {
		return []byte(doc), "json", nil
	}
	encoded := os.Getenv(envConfigYAMLB64)
	if encoded == "" {
		return nil, "", nil
	}
	doc, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", envConfigYAMLB64, err)
	}
	return doc, "yaml", nil
}

// writeConfigFromEnv materialises an environment-provided configuration at
// cfgPath so that config.Load picks it up. The document is merged onto the
// defaults and validated exactly as a file would be.
func writeConfigFromEnv(cfgPath string) (bool, error) {
	doc, format, err := envPayload()
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}
	if cfgPath == "" {
		return false, errors.New("configuration provided through the environment but no -config path supplied")
	}

	// Always written as JSON; config.Load picks the decoder from the extension.
	if ext := filepath.Ext(cfgPath); ext == ".yaml" || ext == ".yml" {
		return false, fmt.Errorf("env config is written as JSON, but -config %s has a YAML extension", cfgPath)
	}

	cfg, err := config.Decode(doc, format)
	if err != nil {
		return false, fmt.Errorf("env config: %w", err)
	}

	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal config json: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}
