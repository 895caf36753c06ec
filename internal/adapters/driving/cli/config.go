package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driven/config/file"
)

var noBootstrap = map[string]string{bootstrapAnnotation: bootstrapNone}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in config.toml.

Values are resolved in order: built-in defaults, config.toml, then
environment variables (also read from .env). 'config list' shows the
effective value of every key and where an environment variable applies.`,
}

var configListCmd = &cobra.Command{
	Use:         "list",
	Short:       "Show every setting",
	Args:        cobra.NoArgs,
	RunE:        runConfigList,
	Annotations: noBootstrap,
}

var configGetCmd = &cobra.Command{
	Use:         "get [key]",
	Short:       "Show one setting",
	Args:        cobra.ExactArgs(1),
	RunE:        runConfigGet,
	Annotations: noBootstrap,
}

var configSetCmd = &cobra.Command{
	Use:         "set [key] [value]",
	Short:       "Store a setting in config.toml",
	Args:        cobra.ExactArgs(2),
	RunE:        runConfigSet,
	Annotations: noBootstrap,
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file location",
	Args:        cobra.NoArgs,
	RunE:        runConfigPath,
	Annotations: noBootstrap,
}

// configShowSecrets disables credential masking in list and get.
var configShowSecrets bool

func init() {
	configCmd.PersistentFlags().BoolVar(&configShowSecrets, "show-secrets", false, "print credentials unmasked")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	settings, err := file.LoadSettings(configStore)
	if err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	cmd.Printf("Config file: %s\n\n", configStore.Path())
	for _, key := range file.SettingKeys() {
		value, _ := file.SettingValue(&settings, key)
		line := fmt.Sprintf("  %-28s %s", key, displayValue(key, value))
		if env := file.SettingEnv(key); env != "" {
			line += fmt.Sprintf("  (env %s)", env)
		}
		cmd.Println(line)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	key := args[0]
	if !slices.Contains(file.SettingKeys(), key) {
		return fmt.Errorf("unknown setting: %s", key)
	}
	settings, err := file.LoadSettings(configStore)
	if err != nil {
		return err
	}
	value, _ := file.SettingValue(&settings, key)
	cmd.Println(displayValue(key, value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	key, raw := args[0], args[1]
	value, err := file.ParseSettingValue(key, raw)
	if err != nil {
		return err
	}
	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	if _, err := file.LoadSettings(configStore); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	cmd.Printf("%s = %s\n", key, displayValue(key, raw))
	if env := file.SettingEnv(key); env != "" {
		cmd.Printf("Note: %s overrides this value when set.\n", env)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	cmd.Println(configStore.Path())
	return nil
}

func displayValue(key, value string) string {
	if value == "" {
		return "(not set)"
	}
	if file.IsSecretSetting(key) && !configShowSecrets {
		return maskAPIKey(value)
	}
	return value
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
