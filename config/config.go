// Package config centralizes gateway configuration, read entirely from
// environment variables with defaults suitable for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure. Each field corresponds to a
// functional domain so responsibility stays scoped per section.
type Config struct {
	Gateway  GatewayConfig
	Admin    AdminConfig
	Artifact ArtifactConfig
	Metadata MetadataConfig
	Handler  HandlerConfig
}

// GatewayConfig configures the public HTTP port that serves handler traffic.
type GatewayConfig struct {
	Host string
	Port int
}

// AdminConfig configures the CRUD/admin HTTP port.
type AdminConfig struct {
	Host string
	Port int
}

// ArtifactConfig locates the directory tree the compiler writes into and the
// registry loads from.
type ArtifactConfig struct {
	Root    string
	WorkDir string
	SDKPath string
}

// MetadataConfig locates the single-file embedded metadata store.
type MetadataConfig struct {
	Path string
}

// HandlerConfig holds the per-handler timeout and the inbound request body
// cap. Load fills it from the environment, but the router does not read it:
// router.Router applies its own DefaultTimeout and 1 MiB body cap.
type HandlerConfig struct {
	TimeoutSeconds int
	MaxBodyBytes   int64
}

// Load reads configuration from GATEWAY_-prefixed environment variables,
// falling back to defaults. Environment variables are the only source other
// than defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8081)
	v.SetDefault("artifact.root", "./artifacts")
	v.SetDefault("artifact.work_dir", "./build")
	v.SetDefault("artifact.sdk_path", "./pkg/handlersdk")
	v.SetDefault("metadata.path", "./gateway.db")
	v.SetDefault("handler.timeout_seconds", 30)
	v.SetDefault("handler.max_body_bytes", 1<<20) // 1 MiB

	for _, key := range []string{
		"gateway.host", "gateway.port",
		"admin.host", "admin.port",
		"artifact.root", "artifact.work_dir", "artifact.sdk_path",
		"metadata.path",
		"handler.timeout_seconds", "handler.max_body_bytes",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	cfg := &Config{
		Gateway: GatewayConfig{
			Host: v.GetString("gateway.host"),
			Port: v.GetInt("gateway.port"),
		},
		Admin: AdminConfig{
			Host: v.GetString("admin.host"),
			Port: v.GetInt("admin.port"),
		},
		Artifact: ArtifactConfig{
			Root:    v.GetString("artifact.root"),
			WorkDir: v.GetString("artifact.work_dir"),
			SDKPath: v.GetString("artifact.sdk_path"),
		},
		Metadata: MetadataConfig{
			Path: v.GetString("metadata.path"),
		},
		Handler: HandlerConfig{
			TimeoutSeconds: v.GetInt("handler.timeout_seconds"),
			MaxBodyBytes:   v.GetInt64("handler.max_body_bytes"),
		},
	}

	return cfg, nil
}

// GatewayAddr returns the bind address for the public gateway server.
func (c *Config) GatewayAddr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// AdminAddr returns the bind address for the admin server.
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// Timeout returns the configured per-handler execution budget.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Handler.TimeoutSeconds) * time.Second
}
