// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/ClusterCockpit/darwin-ingest/pkg/log"
	"github.com/ClusterCockpit/darwin-ingest/pkg/schema"
)

var Keys schema.ProgramConfig = schema.ProgramConfig{
	ClientID:         "",
	NoFromFTP:        false,
	NoListenSTOMP:    false,
	HTTPAddr:         ":8089",
	LogLevel:         "info",
	HeartbeatSeconds: 35,
}

// Init reads flagConfigFile, validates it against schemas/config.schema.json
// and decodes it over the defaults above. A missing file is not fatal: the
// defaults stay, the environment overrides below still apply to the secrets
// and the database string, and hostname/username/subscribe are still checked.
func Init(flagConfigFile string) {
	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
	} else {
		if err := schema.Validate(schema.Config, bytes.NewReader(raw)); err != nil {
			log.Fatalf("validate config: %v", err)
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&Keys); err != nil {
			log.Fatal(err)
		}
	}

	// Secrets may be sourced from the environment instead of the config file
	// itself, so credentials never need to be committed alongside it.
	overlayFromEnv(&Keys.Password, "DARWIN_PASSWORD")
	overlayFromEnv(&Keys.FTPPassword, "DARWIN_FTP_PASSWORD")
	overlayFromEnv(&Keys.S3Secret, "DARWIN_S3_SECRET")
	overlayFromEnv(&Keys.DatabaseString, "DARWIN_DATABASE_STRING")

	if Keys.ClientID == "" {
		Keys.ClientID = Keys.Username
	}
	if Keys.HeartbeatSeconds <= 0 {
		Keys.HeartbeatSeconds = 35
	}

	if Keys.Hostname == "" || Keys.Username == "" || Keys.Subscribe == "" {
		log.Fatal("at least hostname, username and subscribe must be configured")
	}
}

func overlayFromEnv(dest *string, envvar string) {
	if strings.HasPrefix(*dest, "env:") {
		*dest = os.Getenv(strings.TrimPrefix(*dest, "env:"))
		return
	}
	if v := os.Getenv(envvar); v != "" {
		*dest = v
	}
}
