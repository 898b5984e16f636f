package config

import (
	"fmt"
	"maps"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nicolas-rempulski/h-ubu/internal/hub"
	"github.com/nicolas-rempulski/h-ubu/internal/logging"
)

// AdminComponent is the component name the [admin] table configures.
const AdminComponent = "admin"

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
}

type AdminConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// HubConfig is the hubctl config.toml mapping.
type HubConfig struct {
	Name       string                    `toml:"name"`
	Log        LogConfig                 `toml:"log"`
	Admin      AdminConfig               `toml:"admin"`
	Components map[string]map[string]any `toml:"components"`
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		Name: hub.RootName,
		Log: LogConfig{
			Level:     "info",
			Format:    "console",
			Timestamp: true,
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    ":9400",
		},
		Components: map[string]map[string]any{},
	}
}

// LoadHubConfig decodes path and overlays the keys it defines onto
// DefaultHubConfig.
func LoadHubConfig(path string) (HubConfig, error) {
	cfg := DefaultHubConfig()

	var raw HubConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return HubConfig{}, fmt.Errorf("load hub config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			if len(k) > 0 && k[0] == "components" {
				continue
			}
			keys = append(keys, k.String())
		}
		if len(keys) > 0 {
			return HubConfig{}, fmt.Errorf("load hub config (%s): unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("admin", "enabled") {
		cfg.Admin.Enabled = raw.Admin.Enabled
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = raw.Admin.CorsOrigins
	}
	for name, table := range raw.Components {
		cfg.Components[strings.TrimSpace(name)] = table
	}

	if err := ValidateHubConfig(cfg); err != nil {
		return HubConfig{}, fmt.Errorf("load hub config (%s): %w", path, err)
	}
	return cfg, nil
}

func ValidateHubConfig(cfg HubConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("hub config missing name")
	}
	if cfg.Log.Level != "" {
		if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
			return fmt.Errorf("log.level invalid: %q", cfg.Log.Level)
		}
	}
	switch cfg.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}
	if cfg.Admin.Enabled && strings.TrimSpace(cfg.Admin.Addr) == "" {
		return fmt.Errorf("admin.addr is required when admin is enabled")
	}
	for name := range cfg.Components {
		if name == "" {
			return fmt.Errorf("components table with empty name")
		}
	}
	return nil
}

// LoggingConfig maps the [log] table onto a runtime logging config.
// Environment overrides are applied later by logging.ConfigureWith.
func (c HubConfig) LoggingConfig() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	}
	out.Timestamp = c.Log.Timestamp
	out.NoColor = c.Log.NoColor
	out.JSON = c.Log.Format == "json"
	return out
}

// ComponentConfig returns the [components.<name>] table as a hub.Config.
// The admin component also receives the [admin] table keys.
func (c HubConfig) ComponentConfig(name string) hub.Config {
	out := hub.Config{}
	maps.Copy(out, c.Components[name])
	if name == AdminComponent {
		out["addr"] = c.Admin.Addr
		origins := make([]any, 0, len(c.Admin.CorsOrigins))
		for _, o := range c.Admin.CorsOrigins {
			origins = append(origins, o)
		}
		out["cors_origins"] = origins
	}
	return out
}
