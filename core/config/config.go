package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)
)

// loadDotenv loads a .env file from the working directory once per process.
// A missing file is not an error: environments that set variables directly
// (containers, CI) have nothing to load.
func loadDotenv() {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Load populates cfg from environment variables using struct tags understood
// by github.com/caarlos0/env, caching the result by cfg's concrete type so
// repeated calls for the same type return the first-loaded value.
func Load[T any](cfg *T) error {
	loadDotenv()

	t := reflect.TypeOf(*cfg)

	cacheMu.RLock()
	if cached, ok := cache[t]; ok {
		cacheMu.RUnlock()
		*cfg = cached.(T)
		return nil
	}
	cacheMu.RUnlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = *cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad is Load but panics on failure. Intended for use during process
// startup where a misconfigured environment should halt immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset clears the cache for type T, forcing the next Load[T] to re-read the
// environment. Intended for tests.
func Reset[T any]() {
	var zero T
	t := reflect.TypeOf(zero)

	cacheMu.Lock()
	delete(cache, t)
	cacheMu.Unlock()
}
