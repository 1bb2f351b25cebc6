package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 72*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, DefaultEngineConfig(), cfg.Engine)
	assert.True(t, cfg.Seed.DummyScores)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9000"
jwt:
  expire_hours: 2
engine:
  assessment_length: 12
  history_ttl: 90s
  lesson_pass_policy: percentage
  lesson_pass_min_score: 8
`)
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 12, cfg.Engine.AssessmentLength)
	assert.Equal(t, 10, cfg.Engine.LessonQuizLength)
	assert.Equal(t, 90*time.Second, cfg.Engine.HistoryTTL)
	assert.Equal(t, PassPolicyPercentage, cfg.Engine.LessonPassPolicy)
	assert.Equal(t, 8, cfg.Engine.LessonPassMinScore)
}

func TestLoadConfig_ReleaseNeedsLongSecret(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: release
jwt:
  secret: short
`)
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "JWT secret is too short")
}

func TestLoadConfig_RejectsBadEngine(t *testing.T) {
	dir := writeConfig(t, `
engine:
  lesson_pass_policy: vibes
`)
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "lesson_pass_policy")
}

func TestEngineConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultEngineConfig().Validate())

	e := DefaultEngineConfig()
	e.InitialDifficulty = 11
	assert.Error(t, e.Validate())

	e = DefaultEngineConfig()
	e.AssessmentLength = 0
	assert.Error(t, e.Validate())
}
