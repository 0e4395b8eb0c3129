package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/serum-errors/go-serum"

	"github.com/warptools/dsmeta/dsapi"
)

/*
	Env vars and the home directory are read once into a State snapshot.
	Everything downstream works from the snapshot, so nothing changes underneath
	a running operation and tests can build whatever State they like.
*/

type State struct {
	Env           map[string]string
	HomeDirectory string
}

// LookupFunc reads one environment variable.  os.LookupEnv is the usual one.
type LookupFunc func(key string) (string, bool)

// LoadState snapshots the known environment variables and the user's home directory.
//
// Errors:
//
//   - dsmeta-error-config -- when the user home directory cannot be found
func LoadState(lookup LookupFunc) (State, error) {
	state := State{Env: make(map[string]string, len(envKeys))}
	for _, key := range envKeys {
		if v, ok := lookup(key); ok {
			state.Env[key] = v
		}
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return State{}, serum.Error(dsapi.ECodeConfig,
			serum.WithMessageLiteral("unable to find user home directory"),
			serum.WithCause(err),
		)
	}
	state.HomeDirectory = dir
	return state, nil
}

// S3 holds the settings for s3:// locations.
type S3 struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// Config is the resolved configuration of a dsmeta process.
type Config struct {
	// Root is where dataset metadata lives.
	Root  string
	S3    S3
	Debug bool
}

// DefaultRoot is used when neither a flag nor DSMETA_ROOT names a root.
func DefaultRoot(state State) string {
	return filepath.Join(state.HomeDirectory, ".dsmeta", "datasets")
}

// FromState resolves a Config from a State snapshot.
//
// Errors:
//
//   - dsmeta-error-config -- when a boolean variable does not parse
func FromState(state State) (Config, error) {
	cfg := Config{
		Root: DefaultRoot(state),
		S3: S3{
			Region:   state.Env[EnvDsmetaS3Region],
			Endpoint: state.Env[EnvDsmetaS3Endpoint],
		},
	}
	if root, ok := state.Env[EnvDsmetaRoot]; ok && root != "" {
		cfg.Root = root
	}
	var err error
	if cfg.S3.PathStyle, err = parseBool(state, EnvDsmetaS3PathStyle); err != nil {
		return Config{}, err
	}
	if cfg.Debug, err = parseBool(state, EnvDsmetaDebug); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is LoadState from the process environment followed by FromState.
//
// Errors:
//
//   - dsmeta-error-config -- when the environment cannot be read or holds bad values
func Load() (Config, error) {
	state, err := LoadState(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	return FromState(state)
}

func parseBool(state State, key string) (bool, error) {
	v, ok := state.Env[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, dsapi.ErrorConfig(key, "expected a boolean, got "+strconv.Quote(v))
	}
	return b, nil
}
