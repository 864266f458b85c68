package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu     sync.RWMutex
	cache  = make(map[string]any)
	dotenv sync.Once
)

// Load parses environment variables into v. The first successful parse of a
// given struct type is cached; later calls for the same type return the
// cached copy so every caller observes identical configuration.
func Load[T any](v *T) error {
	dotenv.Do(func() {
		// Missing .env is fine; real environments set variables directly.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if cached, ok := cache[key]; ok {
		// Another goroutine parsed the same type first; keep its copy.
		*v = cached.(T)
		return nil
	}
	cache[key] = *v
	return nil
}

// MustLoad panics when the configuration cannot be loaded. Intended for
// required startup config where a missing variable should stop the process.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
