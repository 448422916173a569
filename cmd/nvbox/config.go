package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nuln/nvbox"
)

const (
	configFileName = "nvbox"
	configFileType = "yaml"
	envPrefix      = "NVBOX"

	cfgKeyDriver    = "driver"
	cfgKeyPath      = "path"
	cfgKeyRemote    = "remote"
	cfgKeyObject    = "object"
	cfgKeyChips     = "chips"
	cfgKeyStrict    = "strict"
	cfgKeyCapacity  = "capacity"
	cfgKeyReadSize  = "read_size"
	cfgKeyWriteSize = "write_size"
	cfgKeyEraseSize = "erase_size"
	cfgKeyLogLevel  = "log_level"
)

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"driver":     cfgKeyDriver,
	"path":       cfgKeyPath,
	"remote":     cfgKeyRemote,
	"capacity":   cfgKeyCapacity,
	"read-size":  cfgKeyReadSize,
	"write-size": cfgKeyWriteSize,
	"erase-size": cfgKeyEraseSize,
	"log-level":  cfgKeyLogLevel,
}

// loadConfig layers flags over NVBOX_* environment variables over the
// config file over defaults. A missing config file is not an error unless
// it was named explicitly.
func loadConfig(configFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDriver, "file")
	v.SetDefault(cfgKeyPath, "./flash.img")
	v.SetDefault(cfgKeyObject, "flash.img")
	v.SetDefault(cfgKeyChips, 2)
	v.SetDefault(cfgKeyStrict, false)
	v.SetDefault(cfgKeyCapacity, "64KiB")
	v.SetDefault(cfgKeyReadSize, 1)
	v.SetDefault(cfgKeyWriteSize, 4)
	v.SetDefault(cfgKeyEraseSize, "4KiB")
	v.SetDefault(cfgKeyLogLevel, "warn")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".nvbox"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// deviceConfig builds the registry configuration from v.
func deviceConfig(v *viper.Viper) (*nvbox.Config, error) {
	capacity, err := parseSize(v.GetString(cfgKeyCapacity))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgKeyCapacity, err)
	}
	eraseSize, err := parseSize(v.GetString(cfgKeyEraseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgKeyEraseSize, err)
	}
	readSize, err := parseSize(v.GetString(cfgKeyReadSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgKeyReadSize, err)
	}
	writeSize, err := parseSize(v.GetString(cfgKeyWriteSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgKeyWriteSize, err)
	}

	return &nvbox.Config{
		Type: v.GetString(cfgKeyDriver),
		Path: v.GetString(cfgKeyPath),
		Geometry: nvbox.Geometry{
			Capacity:  capacity,
			ReadSize:  readSize,
			WriteSize: writeSize,
			EraseSize: eraseSize,
		},
		Options: map[string]any{
			"remote":   v.GetString(cfgKeyRemote),
			"object":   v.GetString(cfgKeyObject),
			"chips":    v.GetInt(cfgKeyChips),
			"strict":   v.GetBool(cfgKeyStrict),
			"pageSize": eraseSize,
		},
	}, nil
}

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
