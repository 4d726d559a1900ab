// Package config loads scriptkit configuration.
//
// Values come from, in increasing precedence: struct defaults, a config.yml
// file, a .env file, SCRIPTKIT_* environment variables and command-line
// flags bound with WithFlags.
//
//	var cfg config.Config
//	if err := config.LoadConfig("scriptkit", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// Nested keys map to environment variables by upper-casing and joining with
// underscores: runtime.settle_delay is SCRIPTKIT_RUNTIME_SETTLE_DELAY.
package config
