package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgecraft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `
app: demo
stage: dev
region: us-east-1
router:
  routes:
    /api:
      url: https://api.internal.example.com
      readTimeout: 20
      keepaliveTimeout: 5
`))
	require.NoError(t, err)

	assert.Equal(t, "router", cfg.Router.ID)
	assert.Equal(t, "edgecraft.plan.json", cfg.Plan)
	route := cfg.Router.Routes["/api"]
	assert.Equal(t, 20, route.ReadTimeout)
	assert.Equal(t, 5, route.KeepAliveTimeout)
}

func TestLoadConfigRejectsUnknownOriginKnobs(t *testing.T) {
	// Connection attempts and connection timeout cannot be overridden per
	// request at the edge, so the keys do not exist and strict decoding
	// surfaces them instead of silently dropping them.
	_, err := loadConfig(writeConfig(t, `
app: demo
region: us-east-1
router:
  routes:
    /api:
      url: https://api.internal.example.com
      connectionAttempts: 2
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connectionAttempts")
}

func TestLoadConfigRequiresAppAndRegion(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "region: us-east-1\n"))
	require.Error(t, err)

	_, err = loadConfig(writeConfig(t, "app: demo\n"))
	require.Error(t, err)
}

func TestLoadConfigRequiresSiteIDAndDir(t *testing.T) {
	_, err := loadConfig(writeConfig(t, `
app: demo
region: us-east-1
router:
  sites:
    - id: web
`))
	require.Error(t, err)
}
