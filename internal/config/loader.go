package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = "DISPLAYD_CONFIG"

	envFileName = "displayd.env"

	envLogLevel        = "DISPLAYD_LOG_LEVEL"
	envRefreshInterval = "DISPLAYD_REFRESH_INTERVAL"
	envSuppressDocks   = "DISPLAYD_SUPPRESS_DOCKS"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnvFile SourceKind = "env_file"
	SourceEnv     SourceKind = "env"
)

// Source records where a configuration value came from.
type Source struct {
	Kind   SourceKind
	Name   string // env variable name for env sources
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	switch s.Kind {
	case SourceFile:
		if s.Line > 0 {
			return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
		}
		return s.File
	case SourceEnvFile:
		return fmt.Sprintf("%s (%s)", s.Name, s.File)
	case SourceEnv:
		return s.Name
	default:
		return string(SourceDefault)
	}
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source
	Files   []string          // loaded files, in load order
}

// SourceFor returns where the value at the YAML path came from.
func (r *LoadResult) SourceFor(path string) Source {
	if src, ok := r.Sources[path]; ok {
		return src
	}
	return Source{Kind: SourceDefault}
}

// SourcePaths returns the overridden YAML paths in sorted order.
func (r *LoadResult) SourcePaths() []string {
	paths := make([]string, 0, len(r.Sources))
	for p := range r.Sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind != "" && e.Source.Kind != SourceDefault {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DefaultConfigPath returns $DISPLAYD_CONFIG or ~/.config/displayd/config.yaml.
func DefaultConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "displayd", "config.yaml"), nil
}

// EnvFilePath returns the dotenv file that sits next to the config file.
func EnvFilePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), envFileName)
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns value sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath layers defaults, the YAML file at path (if present), the
// dotenv file next to it (if present) and the process environment.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	sources := map[string]Source{}
	var files []string

	if exists, err := pathExists(path); err != nil {
		return nil, err
	} else if exists {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err == nil {
			for key, src := range collectSources(&doc, path) {
				sources[key] = src
			}
		}
		files = append(files, path)
	}

	envPath := EnvFilePath(path)
	fileEnv, err := readEnvFile(envPath)
	if err != nil {
		return nil, err
	}
	if fileEnv != nil {
		files = append(files, envPath)
	}
	if err := applyEnv(cfg, sources, fileEnv, envPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}

	return &LoadResult{Config: cfg, Sources: sources, Files: files}, nil
}

func readEnvFile(path string) (map[string]string, error) {
	exists, err := pathExists(path)
	if err != nil || !exists {
		return nil, err
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return values, nil
}

// applyEnv applies overrides from the dotenv file, then the process
// environment, which wins.
func applyEnv(cfg *Config, sources map[string]Source, fileEnv map[string]string, envPath string) error {
	lookup := func(name string) (string, Source, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, Source{Kind: SourceEnv, Name: name}, true
		}
		if v, ok := fileEnv[name]; ok {
			return v, Source{Kind: SourceEnvFile, Name: name, File: envPath}, true
		}
		return "", Source{}, false
	}

	if v, src, ok := lookup(envLogLevel); ok {
		cfg.LogLevel = strings.TrimSpace(v)
		sources["log_level"] = src
	}
	if v, src, ok := lookup(envRefreshInterval); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ValidationError{Path: "refresh_interval_seconds", Source: src, Err: fmt.Errorf("invalid integer %q", v)}
		}
		cfg.RefreshIntervalSeconds = n
		sources["refresh_interval_seconds"] = src
	}
	if v, src, ok := lookup(envSuppressDocks); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &ValidationError{Path: "suppression.enabled", Source: src, Err: fmt.Errorf("invalid boolean %q", v)}
		}
		cfg.Suppression.Enabled = b
		sources["suppression.enabled"] = src
	}
	return nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// collectSources maps dotted YAML paths to their position in file.
func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil || len(doc.Content) == 0 {
		return out
	}
	var walk func(n *yaml.Node, prefix string)
	walk = func(n *yaml.Node, prefix string) {
		if n.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			p := key.Value
			if prefix != "" {
				p = prefix + "." + key.Value
			}
			out[p] = Source{Kind: SourceFile, File: file, Line: key.Line, Column: key.Column}
			walk(val, p)
		}
	}
	walk(doc.Content[0], "")
	return out
}

func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	if verr.Source.Kind != "" {
		return verr
	}
	path := verr.Path
	if i := strings.IndexByte(path, '['); i >= 0 {
		path = path[:i]
	}
	if src, ok := sources[path]; ok {
		verr.Source = src
	}
	return verr
}
