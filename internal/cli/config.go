package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/kilupskalvis/clipvault/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file. The file is created at --config,
$CLIPVAULT_CONFIG or $XDG_CONFIG_HOME/clipvault/config.toml. A path ending
in .yaml or .yml produces YAML.`,
	Args: cobra.NoArgs,
	Run:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run:   runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), resolvedConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := resolvedConfigPath()
	cfg, err := config.Initialize(path)
	if err != nil {
		exitError("%v", err)
	}

	w := cmd.OutOrStdout()
	color.New(color.FgGreen).Fprintf(w, "Wrote %s\n", path)
	fmt.Fprintf(w, "Database: %s (%s)\n", cfg.Database.Location, cfg.Database.Backend)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	data, err := toml.Marshal(cfg)
	if err != nil {
		exitError("failed to encode config: %v", err)
	}

	w := cmd.OutOrStdout()
	if _, err := os.Stat(cfg.Path()); err != nil {
		color.New(color.FgYellow).Fprintf(w, "# %s does not exist, showing defaults\n", cfg.Path())
	}
	w.Write(data)
}
