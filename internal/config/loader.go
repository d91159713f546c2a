package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is read when no --config is given and it exists.
const DefaultConfigFile = "sheetsql.yaml"

const envPrefix = "SHEETSQL_"

// legacyRemoteEnv switches the source to S3 when truthy.
const legacyRemoteEnv = "USE_SHAREPOINT"

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"source":     "source.path",
	"db":         "store.path",
	"table":      "store.default_table",
	"retries":    "retry.attempts",
	"wait":       "retry.delay",
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Load builds a Config. An explicit cfgFile must exist; otherwise
// sheetsql.yaml in the working directory is used when present. Only flags
// that were set on the command line override other layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path := cfgFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment: SHEETSQL_STORE__PATH -> store.path
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	if on, _ := strconv.ParseBool(os.Getenv(legacyRemoteEnv)); on {
		if err := k.Load(confmap.Provider(map[string]any{"source.kind": SourceKindS3}, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", legacyRemoteEnv, err)
		}
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}
