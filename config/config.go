// Package config registers the settings of subplay and loads them through viper
// from the config file and SUBPLAY_* environment variables.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subplay/subplay/constant"
	"github.com/subplay/subplay/filesystem"
	"github.com/subplay/subplay/where"
)

// EnvKeyReplacer maps a dotted key to its environment variable suffix.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Setup binds defaults and environment variables, then reads the config file
// if there is one.
func Setup() error {
	viper.SetConfigName(constant.Subplay)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(constant.Subplay)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	return nil
}

// Millis reads an integer key holding milliseconds as a time.Duration.
func Millis(k string) time.Duration {
	return time.Duration(viper.GetInt(k)) * time.Millisecond
}
