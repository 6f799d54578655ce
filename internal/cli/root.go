package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/config"
	"github.com/lu-zhengda/avscan/internal/logging"
	"github.com/lu-zhengda/avscan/internal/signatures"
	"github.com/lu-zhengda/avscan/internal/utils"
)

var (
	jsonFlag    bool
	verboseFlag bool
	logJSONFlag bool
	configPath  string
	appConfig   *config.Config

	// osFs backs signature, report and quarantine file access.
	osFs = afero.NewOsFs()

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "avscan",
	Short:   "A signature-based file system malware scanner",
	Long:    "avscan walks a directory tree and flags files with suspicious extensions or\nknown malware signatures in their content.\nWith auto_scan enabled, running without a subcommand scans the last scanned path.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verboseFlag, logJSONFlag)

		if configPath == "" {
			configPath = config.DefaultPath(utils.HomeDir())
		}
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default(utils.HomeDir())
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			log.Warn().Err(err).Str("path", configPath).Msg("using default configuration")
		}
		appConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}
		if appConfig.AutoScan && appConfig.LastScanPath != "" {
			return runScanCommand(cmd, appConfig.LastScanPath)
		}
		return cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("avscan %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/avscan/config.json)")
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(quarantineCmd)
	rootCmd.AddCommand(configCmd)
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}

// currentConfig returns the loaded config, falling back to defaults.
func currentConfig() *config.Config {
	if appConfig == nil {
		appConfig = config.Default(utils.HomeDir())
	}
	return appConfig
}

// loadSignatures reads the configured signature list, or the built-in one.
func loadSignatures(cfg *config.Config) []string {
	sigs, usedDefault := signatures.LoadList(osFs, utils.ExpandHome(cfg.SignaturePath), signatures.Defaults())
	if usedDefault {
		log.Debug().Str("path", cfg.SignaturePath).Msg("using built-in signatures")
	}
	return sigs
}

// loadBlacklist reads the configured IP blacklist, or the built-in one.
func loadBlacklist(cfg *config.Config) []string {
	ips, usedDefault := signatures.LoadList(osFs, utils.ExpandHome(cfg.BlacklistPath), signatures.DefaultBlacklist())
	if usedDefault {
		log.Debug().Str("path", cfg.BlacklistPath).Msg("using built-in blacklist")
	}
	return ips
}
