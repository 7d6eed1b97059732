/*
Package config binds the command line flags of the server and the oracle
worker to environment variables, an optional .env file and an optional config
file.

Precedence, highest first: explicit flags, environment variables
(SURETY_ prefix, dashes become underscores), variables loaded from the .env
file (which never override the real environment), the config file, and the
flag defaults.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix of configuration keys inside the environment.
	EnvPrefix = "SURETY"

	defaultEnvFile = ".env"
)

// Base holds the flags shared by every command.
type Base struct {
	ConfigFile string
	EnvFile    string
	LogLevel   string
	LogFormat  string
}

func addBaseFlags(flags *pflag.FlagSet, b *Base) {
	flags.StringVar(&b.ConfigFile, "config", "", "config file (yaml, json, toml or properties)")
	flags.StringVar(&b.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded into the environment if it exists")
	flags.StringVar(&b.LogLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&b.LogFormat, "log-format", "console", "log format: console or json")
}

// initializeConfig loads the .env file and the config file and applies
// environment and file values to every flag that was not set explicitly.
func initializeConfig(cmd *cobra.Command, b *Base) error {
	if b.EnvFile != "" {
		if err := godotenv.Load(b.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", b.EnvFile, err)
		}
	}

	v := viper.New()
	if b.ConfigFile != "" {
		v.SetConfigFile(b.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", b.ConfigFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// bindFlags copies viper values into flags the user did not set.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := setFlag(cmd.Flags(), f, v.Get(f.Name)); err != nil {
			bindErr = fmt.Errorf("could not set flag %s from config: %w", f.Name, err)
		}
	})
	return bindErr
}

func setFlag(flags *pflag.FlagSet, f *pflag.Flag, val any) error {
	if items, ok := val.([]any); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return flags.Set(f.Name, strings.Join(parts, ","))
	}
	return flags.Set(f.Name, fmt.Sprintf("%v", val))
}
