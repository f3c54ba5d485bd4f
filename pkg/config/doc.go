// Package config loads typed configuration structs from environment
// variables using caarlos0/env field tags, with optional .env file support
// for local development via godotenv.
//
// Each component owns its own config struct and loads it independently,
// keeping configuration close to the code that consumes it:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
package config
