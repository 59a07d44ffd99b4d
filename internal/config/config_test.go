// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ClusterCockpit/darwin-ingest/internal/config"
)

func TestInitDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := []byte(`{
		"database-string": "postgres://localhost/darwin",
		"hostname": "datafeeds.nationalrail.co.uk",
		"username": "user",
		"password": "pass",
		"subscribe": "/topic/darwin.pushport-v16",
		"identifier": "my-ingester"
	}`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	config.Init(path)

	if config.Keys.HeartbeatSeconds != 35 {
		t.Errorf("expected default heartbeat of 35s, got %d", config.Keys.HeartbeatSeconds)
	}
	if config.Keys.ClientID != "user" {
		t.Errorf("expected client-id to default to username, got %q", config.Keys.ClientID)
	}
	if config.Keys.HTTPAddr != ":8089" {
		t.Errorf("expected default http-addr, got %q", config.Keys.HTTPAddr)
	}
}

func TestInitMissingFileIsNotFatalWhenDefaultPath(t *testing.T) {
	// A missing config file is skipped rather than fatal: with the required
	// keys already set, Init returns and leaves them as they were.
	config.Keys.Hostname = "datafeeds.nationalrail.co.uk"
	config.Keys.Username = "user"
	config.Keys.Subscribe = "/topic/darwin.pushport-v16"

	config.Init(filepath.Join(t.TempDir(), "config.json"))

	if config.Keys.Hostname != "datafeeds.nationalrail.co.uk" {
		t.Errorf("expected hostname to survive a missing config file, got %q", config.Keys.Hostname)
	}
}
