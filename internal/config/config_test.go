// Copyright 2026 The OpenPoll Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Password: "pw"},
		Auth:     AuthConfig{Mode: AuthModeEnforced, JWTSecret: "secret"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	t.Run("missing db password", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Password = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("enforced mode requires secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.JWTSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("open mode needs no secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.Mode = AuthModeOpen
		cfg.Auth.JWTSecret = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.Mode = "permissive"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("AUTH_MODE", AuthModeOpen)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "openpoll", cfg.Database.Database)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, AuthModeOpen, cfg.Auth.Mode)
}
