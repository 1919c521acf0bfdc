package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the settings file used when none is given.
const DefaultPath = "conf/settings.toml"

// Environment override convention: APP__<SECTION>__<KEY>, e.g. APP__API__PORT.
const (
	EnvPrefix    = "APP"
	EnvSeparator = "__"
)

// Load reads settings from a TOML file, then applies environment overrides
// from the process environment and validates the result.
//
// Precedence: environment beats file beats defaults.
func Load(path string) (Settings, error) {
	return LoadWithEnv(path, os.Environ())
}

// LoadWithEnv is Load with an explicit environment, given as KEY=VALUE pairs.
func LoadWithEnv(path string, environ []string) (Settings, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("config file %s not found: %w", path, err)
		}
		return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnv(&cfg, environ); err != nil {
		return Settings{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// Parse decodes settings from TOML text without reading the environment.
func Parse(data string) (Settings, error) {
	cfg := Default()
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields of cfg from APP__SECTION__KEY variables. Section
// and key names are the toml tags, upper-cased. Unknown keys are ignored.
func applyEnv(cfg *Settings, environ []string) error {
	prefix := EnvPrefix + EnvSeparator
	fields := envFields(reflect.ValueOf(cfg).Elem())

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}

		field, ok := fields[strings.ToUpper(strings.TrimPrefix(key, prefix))]
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return &ValidationError{Key: key, Reason: err.Error()}
		}
	}
	return nil
}

// envFields maps SECTION__KEY names to settable leaf fields.
func envFields(root reflect.Value) map[string]reflect.Value {
	fields := make(map[string]reflect.Value)
	rootType := root.Type()

	for i := 0; i < rootType.NumField(); i++ {
		section := root.Field(i)
		sectionName := strings.ToUpper(rootType.Field(i).Tag.Get("toml"))
		if section.Kind() != reflect.Struct || sectionName == "" {
			continue
		}

		sectionType := section.Type()
		for j := 0; j < sectionType.NumField(); j++ {
			keyName := strings.ToUpper(sectionType.Field(j).Tag.Get("toml"))
			if keyName == "" {
				continue
			}
			fields[sectionName+EnvSeparator+keyName] = section.Field(j)
		}
	}
	return fields
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("expected integer, got %q", value)
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("expected number, got %q", value)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected boolean, got %q", value)
		}
		field.SetBool(b)
	case reflect.Slice:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
