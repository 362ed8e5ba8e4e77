// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"path/filepath"
	"strings"

	"github.com/audiobook-dl/audiobook-dl/constant"
	"github.com/audiobook-dl/audiobook-dl/errs"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/audiobook-dl/audiobook-dl/key"
	"github.com/audiobook-dl/audiobook-dl/where"
	"github.com/spf13/viper"
)

// EnvKeyReplacer is a strings.Replacer used to normalize configuration keys into environment variable naming conventions.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// FileName is the configuration file name including its extension.
var FileName = constant.App + ".toml"

// Setup initializes the global configuration state, including defaults, environment bindings, and localized file resolution.
// A missing default configuration file is not an error.
func Setup() error {
	viper.SetConfigName(constant.App)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(EnvPrefix())
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// Load reads an explicitly requested configuration file on top of the defaults.
// Unlike Setup, a missing file is reported as ConfigNotFound.
func Load(path string) error {
	exists, err := filesystem.API().Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ConfigNotFound(path)
	}

	viper.SetConfigFile(path)
	return viper.ReadInConfig()
}

// Path returns the location of the configuration file in use.
func Path() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(where.Config(), FileName)
}

// SourceConfig holds the per-service settings of a [sources.<name>] table.
type SourceConfig struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Library    string `mapstructure:"library"`
	CookieFile string `mapstructure:"cookie_file"`
}

// Source returns the configuration table of the named service.
// A relative cookie file is resolved against the configuration file's directory.
func Source(name string) (SourceConfig, error) {
	var sc SourceConfig
	if err := viper.UnmarshalKey(key.Sources+"."+strings.ToLower(name), &sc); err != nil {
		return sc, err
	}

	if sc.CookieFile != "" && !filepath.IsAbs(sc.CookieFile) {
		sc.CookieFile = filepath.Join(filepath.Dir(Path()), sc.CookieFile)
	}
	return sc, nil
}
