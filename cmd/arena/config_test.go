package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutConfigFile(t *testing.T) {
	conf, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 55556, conf.ListenPort)
	assert.Equal(t, "enet", conf.Transport)
	assert.Equal(t, 16, conf.MaxClients)
	assert.Equal(t, 5*time.Second, conf.JoinTimeoutInMs)
	assert.Equal(t, 500*time.Millisecond, conf.Player.JumpCooldown)
	assert.Equal(t, 200*time.Millisecond, conf.Player.HitFlash)
	assert.Equal(t, 2*time.Second, conf.Player.Weapon.SpinUp)
	assert.Equal(t, 2*time.Second, conf.Player.Weapon.SpinDown)
	assert.Equal(t, 10.0, conf.SpawnZone.Radius)
	assert.Equal(t, 20.0, conf.Relay.MessagesPerSecond)

	sc := conf.sessionConfig()
	assert.Equal(t, 5*time.Second, sc.JoinTimeout)
	assert.Equal(t, 10.0, sc.SpawnZone.Radius)
}

func TestConfigFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`// arena config
{
	"listen_port": 40000,
	"transport": "ws",
	"join_timeout_in_ms": 2500,
	"spawn_zone": {"center": [1, 2, 3], "radius": 5},
	"player": {
		"jump_cooldown_in_ms": 250,
		"weapon": {"spin_up_in_ms": 1000}
	}
}
`), 0o644))

	t.Setenv("ARENA_MAX_CLIENTS", "4")
	t.Setenv("ARENA_SPAWN_RADIUS", "3")

	conf, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 40000, conf.ListenPort)
	assert.Equal(t, "ws", conf.Transport)
	assert.Equal(t, 4, conf.MaxClients)
	assert.Equal(t, 2500*time.Millisecond, conf.JoinTimeoutInMs)
	assert.Equal(t, [3]float64{1, 2, 3}, conf.SpawnZone.Center)
	assert.Equal(t, 3.0, conf.SpawnZone.Radius)
	assert.Equal(t, 250*time.Millisecond, conf.Player.JumpCooldown)
	assert.Equal(t, time.Second, conf.Player.Weapon.SpinUp)
	assert.Equal(t, 2*time.Second, conf.Player.Weapon.SpinDown)
	assert.Equal(t, 15.0, conf.Player.Weapon.MaxSpeed)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("ARENA_TRANSPORT", "carrier-pigeon")
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLogger(t *testing.T) {
	conf := defaultConfig()
	conf.LogLevel = "debug"
	l, err := conf.logger()
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	conf.LogLevel = "chatty"
	_, err = conf.logger()
	assert.Error(t, err)
}
