package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marqueehq/marquee/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing marquee configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all configuration options with defaults applied, merged with any
config file and environment overrides. Redirect the output to a file to
create a configuration template:

  marquee config dump > config.yaml

The effective configuration is validated before dumping, so generating a
template on a fresh machine needs at least MARQUEE_DIRECTORY_URL set.

Environment variables use the MARQUEE_ prefix and underscores for nesting.
Example: server.port -> MARQUEE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations and byte sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch value := field.Interface().(type) {
		case time.Duration:
			result[key] = value.String()
		case config.ByteSize:
			result[key] = value.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# marquee Configuration File")
	fmt.Println("# ==========================")
	fmt.Println("#")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("# Size format: 500MB, 2GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   MARQUEE_DIRECTORY_URL, MARQUEE_DIRECTORY_API_KEY")
	fmt.Println("#   MARQUEE_SCREEN_ID, MARQUEE_SCREEN_NAME")
	fmt.Println("#   MARQUEE_CACHE_BUDGET, MARQUEE_STORAGE_BASE_DIR")
	fmt.Println("#   MARQUEE_LOGGING_LEVEL, MARQUEE_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
