// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema_test

import (
	"strings"
	"testing"

	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

func TestValidateConfigOK(t *testing.T) {
	raw := `{
		"database-string": "postgres://localhost/darwin",
		"hostname": "datafeeds.nationalrail.co.uk",
		"username": "user",
		"password": "pass",
		"subscribe": "/topic/darwin.pushport-v16",
		"identifier": "my-ingester"
	}`

	if err := schema.Validate(schema.Config, strings.NewReader(raw)); err != nil {
		t.Fatalf("expected valid config, got: %s", err.Error())
	}
}

func TestValidateConfigMissingRequired(t *testing.T) {
	raw := `{"hostname": "datafeeds.nationalrail.co.uk"}`

	if err := schema.Validate(schema.Config, strings.NewReader(raw)); err == nil {
		t.Fatal("expected validation error for missing required fields")
	}
}

func TestValidateConfigRejectsUnknownKey(t *testing.T) {
	raw := `{
		"database-string": "postgres://localhost/darwin",
		"hostname": "h", "username": "u", "password": "p", "subscribe": "s", "identifier": "i",
		"not-a-real-key": true
	}`

	if err := schema.Validate(schema.Config, strings.NewReader(raw)); err == nil {
		t.Fatal("expected validation error for additional property")
	}
}
