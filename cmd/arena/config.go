package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"github.com/sauerbraten/jsonfile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sauerbraten/arena/internal/geom"
	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/relay"
	"github.com/sauerbraten/arena/internal/session"
)

const envPrefix = "ARENA_"

type Config struct {
	ListenPort          int    `json:"listen_port" env:"LISTEN_PORT"`
	Transport           string `json:"transport" env:"TRANSPORT"` // "enet" or "ws"
	MaxClients          int    `json:"max_clients" env:"MAX_CLIENTS"`
	MasterServerAddress string `json:"master_server_address" env:"MASTER_SERVER_ADDRESS"`
	BansFile            string `json:"bans_file" env:"BANS_FILE"`
	StatsDatabase       string `json:"stats_database" env:"STATS_DATABASE"`

	LogLevel    string `json:"log_level" env:"LOG_LEVEL"`
	Development bool   `json:"development" env:"DEVELOPMENT"`

	JoinTimeoutInMs time.Duration `json:"join_timeout_in_ms"`
	SyncRate        int           `json:"sync_rate" env:"SYNC_RATE"`       // Hz
	PhysicsRate     int           `json:"physics_rate" env:"PHYSICS_RATE"` // Hz

	SpawnZone struct {
		Center [3]float64 `json:"center"`
		Radius float64    `json:"radius" env:"SPAWN_RADIUS"`
	} `json:"spawn_zone"`

	Arena struct {
		Radius float64 `json:"radius"`
		FloorY float64 `json:"floor_y"`
		KillY  float64 `json:"kill_y"`
	} `json:"arena"`

	Player player.Config `json:"player"`
	Relay  relay.Config  `json:"relay"`
}

func defaultConfig() *Config {
	c := &Config{
		ListenPort:      55556,
		Transport:       "enet",
		MaxClients:      16,
		BansFile:        "bans.json",
		LogLevel:        "info",
		JoinTimeoutInMs: 5000,
		SyncRate:        30,
		PhysicsRate:     60,
		Player:          player.DefaultConfig(),
		Relay:           relay.DefaultConfig(),
	}
	c.SpawnZone.Radius = 10
	c.Arena.Radius = 40
	c.Arena.KillY = -30

	// durations are written without unit in the config file
	c.Player.JumpCooldown /= time.Millisecond
	c.Player.HitFlash /= time.Millisecond
	c.Player.Weapon.SpinUp /= time.Millisecond
	c.Player.Weapon.SpinDown /= time.Millisecond
	return c
}

// loadConfig reads fileName if it exists, then applies ARENA_* environment
// variables, including those from a .env file in the working directory.
func loadConfig(fileName string) (*Config, error) {
	conf := defaultConfig()

	if _, err := os.Stat(fileName); err == nil {
		if err := jsonfile.ParseFile(fileName, conf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := env.ParseWithOptions(conf, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// durations are parsed without unit
	conf.JoinTimeoutInMs *= time.Millisecond
	conf.Player.JumpCooldown *= time.Millisecond
	conf.Player.HitFlash *= time.Millisecond
	conf.Player.Weapon.SpinUp *= time.Millisecond
	conf.Player.Weapon.SpinDown *= time.Millisecond

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	switch {
	case c.Transport != "enet" && c.Transport != "ws":
		return fmt.Errorf("unknown transport %q", c.Transport)
	case c.ListenPort <= 0 || c.ListenPort > 65535:
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	case c.SyncRate <= 0 || c.PhysicsRate <= 0:
		return errors.New("sync and physics rates must be positive")
	case c.SpawnZone.Radius <= 0:
		return errors.New("spawn zone radius must be positive")
	}
	return nil
}

func (c *Config) sessionConfig() session.Config {
	return session.Config{
		Player:      c.Player,
		Relay:       c.Relay,
		SpawnZone:   geom.SpawnZone{Center: mgl64.Vec3(c.SpawnZone.Center), Radius: c.SpawnZone.Radius},
		JoinTimeout: c.JoinTimeoutInMs,
		MaxClients:  c.MaxClients,
	}
}

func (c *Config) arena() geom.Arena {
	center := mgl64.Vec3(c.SpawnZone.Center)
	return geom.Arena{Center: center, Radius: c.Arena.Radius, FloorY: c.Arena.FloorY, KillY: c.Arena.KillY}
}

func (c *Config) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// stdout belongs to the console
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
