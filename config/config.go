package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Validators hold the list of validation functions for each configuration
// property. Validators must take a key and json string respectively as
// arguments, and must return either an error or nil depending on whether or
// not the given key and value are valid. Validators will only be run if a
// property being set matches the name given in this map.
var Validators = map[string]func(string, string) error{
	"daemon.host": validateHost,
}

// Config is an in memory representation of the daemon configuration file.
type Config struct {
	Daemon DaemonConfig `json:"daemon"`
	Poll   PollConfig   `json:"poll"`
	Log    LogConfig    `json:"log"`
}

// DaemonConfig locates the remote chain daemon.
type DaemonConfig struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

func newDefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Host: "127.0.0.1",
		Port: 17082,
	}
}

// PollConfig holds the polling loop periods, in seconds. Cooldowns apply
// after a request was processed.
type PollConfig struct {
	StatusSeconds        int `json:"statusSeconds"`
	TxSeconds            int `json:"txSeconds"`
	ResetIdleSeconds     int `json:"resetIdleSeconds"`
	ResetCooldownSeconds int `json:"resetCooldownSeconds"`
	SaveIdleSeconds      int `json:"saveIdleSeconds"`
	SaveCooldownSeconds  int `json:"saveCooldownSeconds"`
}

func newDefaultPollConfig() PollConfig {
	return PollConfig{
		StatusSeconds:        5,
		TxSeconds:            2,
		ResetIdleSeconds:     5,
		ResetCooldownSeconds: 60,
		SaveIdleSeconds:      5,
		SaveCooldownSeconds:  10,
	}
}

// Status returns the status loop period as a duration.
func (p PollConfig) Status() time.Duration { return seconds(p.StatusSeconds) }

// Tx returns the transaction loop period as a duration.
func (p PollConfig) Tx() time.Duration { return seconds(p.TxSeconds) }

func (p PollConfig) ResetIdle() time.Duration     { return seconds(p.ResetIdleSeconds) }
func (p PollConfig) ResetCooldown() time.Duration { return seconds(p.ResetCooldownSeconds) }
func (p PollConfig) SaveIdle() time.Duration      { return seconds(p.SaveIdleSeconds) }
func (p PollConfig) SaveCooldown() time.Duration  { return seconds(p.SaveCooldownSeconds) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// LogConfig holds all configuration options related to logging.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

func newDefaultLogConfig() LogConfig {
	return LogConfig{
		Level: "info",
	}
}

// NewDefaultConfig returns a config object with all the fields filled out to
// their default values
func NewDefaultConfig() *Config {
	return &Config{
		Daemon: newDefaultDaemonConfig(),
		Poll:   newDefaultPollConfig(),
		Log:    newDefaultLogConfig(),
	}
}

// WriteFile writes the config to the given filepath.
func (cfg *Config) WriteFile(file string) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close() // nolint: errcheck

	configString, err := json.MarshalIndent(*cfg, "", "\t")
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(f, string(configString))
	return err
}

// ReadFile reads a config file from disk.
func ReadFile(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck

	cfg := NewDefaultConfig()
	rawConfig, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(rawConfig) == 0 {
		return cfg, nil
	}

	err = json.Unmarshal(rawConfig, &cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Set sets the config sub-struct referenced by `key`, e.g. 'daemon.host'
// to the json key value pair encoded in jsonVal.
func (cfg *Config) Set(dottedKey string, jsonString string) error {
	if !json.Valid([]byte(jsonString)) {
		jsonBytes, _ := json.Marshal(jsonString)
		jsonString = string(jsonBytes)
	}

	if err := validate(dottedKey, jsonString); err != nil {
		return err
	}

	keys := strings.Split(dottedKey, ".")
	for i := len(keys) - 1; i >= 0; i-- {
		jsonString = fmt.Sprintf(`{ "%s": %s }`, keys[i], jsonString)
	}

	decoder := json.NewDecoder(strings.NewReader(jsonString))
	decoder.DisallowUnknownFields()

	return decoder.Decode(&cfg)
}

// Get gets the config sub-struct referenced by `key`, e.g. 'daemon.port'
func (cfg *Config) Get(key string) (interface{}, error) {
	v := reflect.Indirect(reflect.ValueOf(cfg))
	keyTags := strings.Split(key, ".")
OUTER:
	for j, keyTag := range keyTags {
		if v.Type().Kind() == reflect.Struct {
			for i := 0; i < v.NumField(); i++ {
				jsonTag := strings.Split(
					v.Type().Field(i).Tag.Get("json"),
					",")[0]
				if jsonTag == keyTag {
					v = v.Field(i)
					if j == len(keyTags)-1 {
						return v.Interface(), nil
					}
					v = reflect.Indirect(v) // only attempt one dereference
					continue OUTER
				}
			}
		}

		return nil, fmt.Errorf("key: %s invalid for config", key)
	}
	// Cannot get here as len(strings.Split(s, sep)) >= 1 with non-empty sep
	return nil, fmt.Errorf("empty key is invalid")
}

// validate runs validations on a given key and json string. validate uses
// the validators map defined at the top of this file to determine which
// validations to use for each key.
func validate(dottedKey string, jsonString string) error {
	var obj interface{}
	if err := json.Unmarshal([]byte(jsonString), &obj); err != nil {
		return err
	}
	// recursively validate sub-keys by partially unmarshalling
	if reflect.ValueOf(obj).Kind() == reflect.Map {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(jsonString), &obj); err != nil {
			return err
		}
		for key := range obj {
			if err := validate(dottedKey+"."+key, string(obj[key])); err != nil {
				return err
			}
		}
		return nil
	}

	if validationFunc, present := Validators[dottedKey]; present {
		return validationFunc(dottedKey, jsonString)
	}
	return nil
}

// validateHost checks that a daemon host value is a plausible hostname or
// address literal.
func validateHost(key string, value string) error {
	var host string
	err := json.Unmarshal([]byte(value), &host)
	if err != nil {
		return err
	}
	if host == "" || strings.ContainsAny(host, " \t/") {
		return errors.Errorf("%s must be a hostname or IP address", key)
	}
	return nil
}
