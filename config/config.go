// Package config loads the application configuration: an optional .env file, then a YAML file
// with a `kind`/`def` envelope, then GRIDLEARN_* environment overrides on top of the variant's
// defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gridlearn/checkpoint"
	"gridlearn/episode"
	"gridlearn/grid_world"
	"gridlearn/reinforcement"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. GRIDLEARN_REDIS_ADDR.
const EnvPrefix = "GRIDLEARN"

// OuterConfig is the envelope of a config file: kind selects the variant and def is decoded
// against that variant's defaults.
type OuterConfig struct {
	Kind string    `yaml:"kind"`
	Def  yaml.Node `yaml:"def"`
}

// WorldConfig selects the map. For the maze a layout file wins over generation, and generation
// over the built-in maze. The arena is a walled floor of Width x Height unless a layout is given.
type WorldConfig struct {
	grid_world.Config `yaml:",inline"`
	Layout            string `yaml:"layout"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	Generate          bool   `yaml:"generate"`
	MazeRows          int    `yaml:"mazeRows"`
	MazeCols          int    `yaml:"mazeCols"`
}

type CheckpointConfig struct {
	// Path is the table file; ignored when RedisAddr is set.
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redisAddr"`
	RedisKey  string `yaml:"redisKey"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	TickInterval time.Duration `yaml:"tickInterval"`
}

// AppConfig is everything needed to build and drive a training run.
type AppConfig struct {
	Variant    grid_world.Variant           `yaml:"-"`
	Seed       int64                        `yaml:"seed"`
	World      WorldConfig                  `yaml:"world"`
	Training   reinforcement.TrainingConfig `yaml:"training"`
	Episode    episode.Config               `yaml:"episode"`
	Checkpoint CheckpointConfig             `yaml:"checkpoint"`
	Server     ServerConfig                 `yaml:"server"`
}

// Default returns the configuration of a variant with nothing overridden.
func Default(variant grid_world.Variant) *AppConfig {
	cfg := &AppConfig{
		Variant: variant,
		World: WorldConfig{
			Config:   grid_world.DefaultConfig(variant),
			Width:    24,
			Height:   16,
			MazeRows: 4,
			MazeCols: 4,
		},
		Episode: episode.DefaultConfig(variant),
		Checkpoint: CheckpointConfig{
			Path:     filepath.Join("checkpoints", variant.String()+".qtable"),
			RedisKey: "gridlearn:" + variant.String() + ":qtable",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			TickInterval: 50 * time.Millisecond,
		},
	}
	return cfg
}

// LoadEnv loads a .env file into the process environment. A missing file is not an error.
func LoadEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("[CONFIG] [INFO] .env file not found or could not be loaded: %v", err)
	}
}

// Load reads the config file at path. An empty path yields the defaults of the variant named by
// GRIDLEARN_KIND, or the maze. Environment overrides are applied last:
//
//	GRIDLEARN_KIND, GRIDLEARN_SEED, GRIDLEARN_CHECKPOINT_PATH, GRIDLEARN_REDIS_ADDR,
//	GRIDLEARN_REDIS_KEY, GRIDLEARN_SERVER_ADDR
func Load(path string) (*AppConfig, error) {
	vp := viper.New()
	vp.SetEnvPrefix(EnvPrefix)
	vp.AutomaticEnv()
	vp.SetDefault("kind", grid_world.Maze.String())

	var raw []byte
	if path != "" {
		vp.SetConfigFile(path)
		vp.SetConfigType("yaml")
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	// Viper folds keys to lower case, so the body is decoded with yaml directly to keep the
	// camelCase field names; viper still owns the kind and the environment.
	variant, err := grid_world.ParseVariant(vp.GetString("kind"))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg := Default(variant)

	if len(raw) > 0 {
		outer := &OuterConfig{}
		if err = yaml.NewDecoder(bytes.NewReader(raw)).Decode(outer); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if !outer.Def.IsZero() {
			if err = outer.Def.Decode(cfg); err != nil {
				return nil, fmt.Errorf("config %s: def: %w", path, err)
			}
		}
	}
	cfg.Variant = variant
	cfg.World.Variant = variant

	if vp.IsSet("seed") {
		cfg.Seed = vp.GetInt64("seed")
	}
	for key, dst := range map[string]*string{
		"checkpoint_path": &cfg.Checkpoint.Path,
		"redis_addr":      &cfg.Checkpoint.RedisAddr,
		"redis_key":       &cfg.Checkpoint.RedisKey,
		"server_addr":     &cfg.Server.Addr,
	} {
		if val := vp.GetString(key); val != "" {
			*dst = val
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component could run with.
func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.World.Lookahead < 1 {
		errs = append(errs, errors.New("world.lookahead must be at least 1"))
	}
	if cfg.World.FoodCount < 0 || cfg.World.HazardCount < 0 {
		errs = append(errs, errors.New("world item counts must not be negative"))
	}
	if s := cfg.Episode.HazardShrink; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("episode.hazardShrink %v outside [0,1]", s))
	}
	if cfg.Episode.MaxMoves < 0 {
		errs = append(errs, errors.New("episode.maxMoves must not be negative"))
	}
	params := cfg.Training.Params(cfg.Variant)
	if params.Alpha <= 0 || params.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha %v outside (0,1]", params.Alpha))
	}
	if params.Gamma <= 0 || params.Gamma > 1 {
		errs = append(errs, fmt.Errorf("gamma %v outside (0,1]", params.Gamma))
	}
	sched := cfg.Training.Schedule(cfg.Variant)
	if sched.Decay <= 0 || sched.Decay > 1 {
		errs = append(errs, fmt.Errorf("epsilonDecay %v outside (0,1]", sched.Decay))
	}
	if sched.Minimum < 0 || sched.Minimum > 1 {
		errs = append(errs, fmt.Errorf("epsilonMin %v outside [0,1]", sched.Minimum))
	}
	return errors.Join(errs...)
}

// Rng returns the run's random source: seeded from Seed, or from the clock when Seed is zero.
func (cfg *AppConfig) Rng() *rand.Rand {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// WorldFactory returns the per-episode map builder. A layout file is read once here, and the
// first map is built eagerly so that a malformed layout fails at load time.
func (cfg *AppConfig) WorldFactory() (episode.WorldFactory, error) {
	wcfg := cfg.World
	var layout func(rng *rand.Rand) string

	switch {
	case wcfg.Layout != "":
		data, err := os.ReadFile(wcfg.Layout)
		if err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
		text := string(data)
		layout = func(*rand.Rand) string { return text }
	case cfg.Variant == grid_world.Arena:
		text := grid_world.ArenaLayout(wcfg.Width, wcfg.Height)
		layout = func(*rand.Rand) string { return text }
	case wcfg.Generate:
		layout = func(rng *rand.Rand) string { return grid_world.MazeLayout(wcfg.MazeRows, wcfg.MazeCols, rng) }
	default:
		layout = func(*rand.Rand) string { return grid_world.DefaultMaze }
	}

	factory := func(rng *rand.Rand) (*grid_world.GridWorld, error) {
		return grid_world.FromLayout(layout(rng), wcfg.Config, rng)
	}
	if _, err := factory(rand.New(rand.NewSource(1))); err != nil {
		return nil, err
	}
	return factory, nil
}

// OpenStore returns the checkpoint backend: Redis when an address is configured, otherwise a
// file, or nil when neither is. The returned close func is never nil.
func (cfg *AppConfig) OpenStore() (checkpoint.Store, func() error) {
	ck := cfg.Checkpoint
	if ck.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: ck.RedisAddr})
		return checkpoint.NewRedisStore(client, ck.RedisKey), client.Close
	}
	if ck.Path != "" {
		return checkpoint.NewFileStore(ck.Path), func() error { return nil }
	}
	return nil, func() error { return nil }
}

// NewTable returns an empty value table with the configured hyper-parameters.
func (cfg *AppConfig) NewTable(rng *rand.Rand) *reinforcement.QTable {
	return reinforcement.NewQTable(cfg.Training.Params(cfg.Variant), rng)
}

// ControllerOptions wires a controller for this configuration around table.
func (cfg *AppConfig) ControllerOptions(
	table *reinforcement.QTable,
	store checkpoint.Store,
	logger *log.Logger,
	rng *rand.Rand,
) (episode.Options, error) {
	factory, err := cfg.WorldFactory()
	if err != nil {
		return episode.Options{}, err
	}
	return episode.Options{
		Config:   cfg.Episode,
		NewWorld: factory,
		Table:    table,
		Schedule: cfg.Training.Schedule(cfg.Variant),
		Store:    store,
		Logger:   logger,
		Rng:      rng,
	}, nil
}
