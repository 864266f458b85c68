// Package config loads typed configuration structs from environment
// variables. Each struct type is parsed once per process and cached, so
// independent packages can load their own config without coordinating.
//
// Fields are declared with `env` tags:
//
//	type MongoConfig struct {
//		URL     string        `env:"MONGODB_URL,required"`
//		Timeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
//	}
//
// A .env file in the working directory is loaded on first use when present.
package config
