package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/geoclock")
	t.Setenv("ENVIRONMENT", EnvDevelopment)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, 10*time.Second, cfg.LocationTimeout)
	assert.Equal(t, time.Minute, cfg.LocationMaxAge)
	assert.Equal(t, time.Minute, cfg.GeofenceCacheTTL)
	assert.Equal(t, "08:00", cfg.Schedule().Morning.Start)
	assert.Equal(t, "17:00", cfg.Schedule().Evening.End)
}

func TestLoad_FirestoreRequiresProject(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_BACKEND", BackendFirestore)

	_, err := Load()
	assert.ErrorContains(t, err, "FIRESTORE_PROJECT_ID")

	t.Setenv("FIRESTORE_PROJECT_ID", "ojt-demo")
	_, err = Load()
	assert.NoError(t, err)
}

func TestLoad_InvalidSchedule(t *testing.T) {
	setRequired(t)
	t.Setenv("SHIFT_MORNING_END", "noon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Timezone(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_APIKeyRequiredOutsideDevelopment(t *testing.T) {
	setRequired(t)
	t.Setenv("API_KEY", "")

	_, err := Load()
	require.NoError(t, err)

	t.Setenv("ENVIRONMENT", "production")
	_, err = Load()
	assert.ErrorContains(t, err, "API_KEY")

	t.Setenv("API_KEY", "gateway-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gateway-key", cfg.APIKey)
}

func TestLoad_LocationMaxAge(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCATION_MAX_AGE", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.LocationMaxAge)

	t.Setenv("LOCATION_MAX_AGE", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
