package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LogConfig configures logging behavior
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"console"`
	Debug  bool   `yaml:"debug" env:"DEBUG" default:"false"`
}

// ParseLevel maps the configured level name to a zerolog level.
// Debug wins over Level; unknown names fall back to info.
func (c *LogConfig) ParseLevel() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	switch strings.ToLower(c.Level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// ConfigureZerolog sets the global level and output format
func (c *LogConfig) ConfigureZerolog(out io.Writer) {
	zerolog.SetGlobalLevel(c.ParseLevel())

	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(c.Format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
}

// Sources names where configuration is read from
type Sources struct {
	ConfigFile      string
	EnvironmentFile string
	ServiceName     string
}

// Loader fills a config struct from defaults, a YAML file, an env file
// and the process environment, in that order.
type Loader struct {
	sources Sources
}

// NewLoader creates a new configuration loader
func NewLoader(sources Sources) *Loader {
	return &Loader{sources: sources}
}

// Load loads configuration into the provided struct pointer
func (l *Loader) Load(target interface{}) error {
	if err := l.applyDefaults(reflect.ValueOf(target)); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}

	if l.sources.ConfigFile != "" {
		if err := l.loadYAML(target, l.sources.ConfigFile); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if l.sources.EnvironmentFile != "" {
		if err := loadEnvironmentFile(l.sources.EnvironmentFile); err != nil {
			return fmt.Errorf("failed to load environment file: %w", err)
		}
	}

	if err := l.applyEnv(reflect.ValueOf(target), ""); err != nil {
		return fmt.Errorf("failed to load from environment: %w", err)
	}

	return nil
}

func (l *Loader) applyDefaults(v reflect.Value) error {
	v, ok := structValue(v)
	if !ok {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		if isStructField(field) {
			if err := l.applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		if def := fieldType.Tag.Get("default"); def != "" {
			if err := setFieldValue(field, def); err != nil {
				return fmt.Errorf("failed to set default for field %s: %w", fieldType.Name, err)
			}
		}
	}

	return nil
}

func (l *Loader) loadYAML(target interface{}, filename string) error {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil // optional
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func (l *Loader) applyEnv(v reflect.Value, prefix string) error {
	v, ok := structValue(v)
	if !ok {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if !field.CanSet() {
			continue
		}

		name := strings.ToUpper(fieldType.Name)
		if prefix != "" {
			name = prefix + "_" + name
		}

		if isStructField(field) {
			if err := l.applyEnv(field, name); err != nil {
				return err
			}
			continue
		}

		envName := fieldType.Tag.Get("env")
		if envName == "" {
			envName = name
		}

		// LEDBRIDGE_LOG_LEVEL beats LOG_LEVEL
		candidates := []string{envName}
		if l.sources.ServiceName != "" {
			serviceName := strings.ToUpper(strings.ReplaceAll(l.sources.ServiceName, "-", ""))
			candidates = append([]string{serviceName + "_" + envName}, candidates...)
		}

		for _, candidate := range candidates {
			value, exists := os.LookupEnv(candidate)
			if !exists {
				continue
			}
			if err := setFieldValue(field, value); err != nil {
				return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, candidate, err)
			}
			break
		}
	}

	return nil
}

// loadEnvironmentFile exports KEY=VALUE lines that are not already set
func loadEnvironmentFile(filename string) error {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read environment file %s: %w", filename, err)
	}

	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("invalid line %d in environment file %s: %s", lineNum+1, filename, line)
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return nil
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

func structValue(v reflect.Value) (reflect.Value, bool) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			if !v.CanSet() {
				return v, false
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

func isStructField(field reflect.Value) bool {
	if field.Type() == reflect.TypeOf(time.Time{}) {
		return false
	}
	return field.Kind() == reflect.Struct ||
		(field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct)
}

// setFieldValue sets a scalar field from its string form
func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := parseBoolValue(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := parseIntValue(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := parseUintValue(value)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", value)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := parseFloatValue(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		parts := splitList(value)
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// FindConfigFile searches for <service>.yaml in the usual places
func FindConfigFile(serviceName string) string {
	configName := serviceName + ".yaml"

	searchPaths := []string{
		configName,
		filepath.Join("config", configName),
		filepath.Join("configs", configName),
		filepath.Join("/etc", serviceName, configName),
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, "."+serviceName, configName))
	}

	return firstExisting(searchPaths)
}

// FindEnvironmentFile searches for an environment file
func FindEnvironmentFile(serviceName string) string {
	envName := serviceName + ".env"

	return firstExisting([]string{
		".env",
		envName,
		filepath.Join("config", ".env"),
		filepath.Join("config", envName),
		filepath.Join("configs", ".env"),
		filepath.Join("configs", envName),
	})
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
