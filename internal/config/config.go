// Package config resolves CLI defaults from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvSuffix = "TVINTERLACE_SUFFIX"
	EnvJobs   = "TVINTERLACE_JOBS"
)

// DefaultSuffix is inserted before the extension of each output file.
const DefaultSuffix = "-interlaced"

// Config holds batch settings. Flags take priority over these values.
type Config struct {
	Suffix string
	Jobs   int
}

// Default returns the built-in settings.
func Default() Config {
	return Config{Suffix: DefaultSuffix, Jobs: 1}
}

// Load returns Default overridden by the given .env files and then by the
// process environment. Missing .env files are ignored; earlier files win
// over later ones. With no files, ".env" in the working directory is tried.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}

	fileVars := map[string]string{}
	for _, f := range dotenvFiles {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vars {
			if _, ok := fileVars[k]; !ok {
				fileVars[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}

	cfg := Default()
	if v, ok := lookup(EnvSuffix); ok {
		cfg.Suffix = v
	}
	if v, ok := lookup(EnvJobs); ok {
		jobs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", EnvJobs, err)
		}
		cfg.Jobs = jobs
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would overwrite inputs or never run.
// A Jobs value of 0 is replaced with the number of CPUs.
func (c *Config) Validate() error {
	if c.Suffix == "" {
		return errors.New("config: output suffix must not be empty")
	}
	if strings.ContainsRune(c.Suffix, os.PathSeparator) {
		return fmt.Errorf("config: output suffix %q must not contain a path separator", c.Suffix)
	}
	switch {
	case c.Jobs < 0:
		return fmt.Errorf("config: jobs must be >= 0, got %d", c.Jobs)
	case c.Jobs == 0:
		c.Jobs = runtime.NumCPU()
	}
	return nil
}
