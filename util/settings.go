package util

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "TORCHSYNC"

var Config = viper.New()

var config_listeners []func()

func RegisterNewConfigListener(new_listener func()) {
	for _, listener := range config_listeners {
		if reflect.ValueOf(new_listener).Pointer() == reflect.ValueOf(listener).Pointer() {
			Logger.Warn().Msg("config listener already registered")
			return
		}
	}
	config_listeners = append(config_listeners, new_listener)
}

func OnNewConfig() {
	for _, listener := range config_listeners {
		listener()
	}
}

func GetRandString(n int) string {
	const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	for i := range b {
		randBytes := make([]byte, 1)
		if _, err := rand.Read(randBytes); err != nil {
			b[i] = letterBytes[i%len(letterBytes)]
		} else {
			b[i] = letterBytes[int(randBytes[0])%len(letterBytes)]
		}
	}
	return string(b)
}

// DurationMillis reads an integer millisecond setting as a duration.
func DurationMillis(key string) time.Duration {
	return time.Duration(Config.GetInt64(key)) * time.Millisecond
}

func setDefaults() {
	// mqtt
	Config.SetDefault("broker_uri", "tcp://mqtt:1883")
	Config.SetDefault("cleansess", false)
	Config.SetDefault("id_base", "torch_sync")
	Config.SetDefault("username", "")
	Config.SetDefault("password", "")
	Config.SetDefault("mqtt_timeout_ms", 5000)

	// logging and monitor
	Config.SetDefault("log_level", "info")
	Config.SetDefault("log_format", "console")
	Config.SetDefault("details_port", 8080)

	// topics
	Config.SetDefault("model.prefix", "torchsync")

	// sync engine
	Config.SetDefault("sync.write_workers", 4)
	Config.SetDefault("sync.write_queue", 64)
	Config.SetDefault("sync.write_timeout_ms", 5000)
	Config.SetDefault("sync.ungated_config_change", false)

	// home assistant discovery
	Config.SetDefault("ha.enabled", true)
	Config.SetDefault("ha.name", "torch_sync")
}

func SetupConfig() {
	Config.SetEnvPrefix(ENV_PREFIX)
	Config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults()

	// config file
	Config.SetConfigName("torch_sync")
	Config.AddConfigPath("/")
	Config.AddConfigPath("./")
	Config.AddConfigPath("./config")
	Config.AddConfigPath("/etc")
	Config.AddConfigPath("/torch_sync")
	Config.AddConfigPath("/torch_sync/config")

	err := Config.ReadInConfig()
	if err != nil {
		Logger.Error().Msgf("unable to read config file: %v", fmt.Errorf("%v", err))
	}

	// environment variables
	Config.AutomaticEnv()

	// watch for changes
	Config.OnConfigChange(func(e fsnotify.Event) {
		Logger.Info().Msgf("Config file changed: %v", e.Name)
		Logger.Debug().Msgf("Config Additional Info: %v", e.String())
		OnNewConfig()
	})
	if err == nil {
		Config.WatchConfig()
	}
}
