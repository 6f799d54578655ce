package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/avscan/internal/config"
	"github.com/lu-zhengda/avscan/internal/utils"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file %q: %w", configPath, err)
		}

		problems := cfg.Validate()
		if len(problems) == 0 {
			fmt.Printf("Config OK (%s)\n", configPath)
			return nil
		}

		fmt.Printf("Found %d problem(s) in %s:\n", len(problems), configPath)
		for _, p := range problems {
			fmt.Printf("  %s\n", p)
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		if jsonFlag {
			return printJSON(cfg)
		}
		fmt.Printf("# %s\n", configPath)
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

// setPathCmd builds a command that stores a file path into one config field.
func setPathCmd(use, short string, set func(*config.Config, string)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := utils.ResolvePath(args[0])
			if !utils.FileExists(path) {
				fmt.Fprintf(os.Stderr, "Warning: %s does not exist yet; built-in defaults apply until it does.\n", path)
			}
			if err := currentConfig().Update(configPath, func(c *config.Config) {
				set(c, path)
			}); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Printf("Saved %s\n", configPath)
			return nil
		},
	}
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(setPathCmd("set-signatures", "Use a signature file", func(c *config.Config, p string) {
		c.SignaturePath = p
	}))
	configCmd.AddCommand(setPathCmd("set-blacklist", "Use an IP blacklist file", func(c *config.Config, p string) {
		c.BlacklistPath = p
	}))
}
