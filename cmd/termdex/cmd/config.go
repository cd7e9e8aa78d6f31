package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bold-kg/termdex/configs"
	"github.com/bold-kg/termdex/internal/config"
	"github.com/bold-kg/termdex/internal/logging"
	"github.com/bold-kg/termdex/internal/output"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage termdex configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/termdex/config.yaml)
  3. Project config (.termdex.yaml in the working directory)
  4. --config file
  5. Environment variables (TERMDEX_*)
  6. Command-line flags`,
		Example: `  termdex config init
  termdex config show --json
  termdex config path`,
		// Config commands must work while the configuration is broken.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logging.Discard()
			return nil
		},
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Create ~/.config/termdex/config.yaml from the built-in template.

With --force an existing file is backed up and rewritten with every current
option, keeping the values you already set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and upgrade an existing configuration")

	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, root, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output.New(cmd.OutOrStdout()).Plain(config.GetUserConfigPath())
			return nil
		},
	}
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	configPath := config.GetUserConfigPath()

	if config.UserConfigExists() {
		if !force {
			out.Warning("User configuration already exists")
			out.Statusf("📁", "Location: %s", configPath)
			out.Status("💡", "Use --force to upgrade it (your settings are kept)")
			return nil
		}
		return runConfigUpgrade(out, configPath)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created user configuration")
	out.Statusf("📁", "Location: %s", configPath)
	out.Status("💡", "Run 'termdex config show' to verify")
	return nil
}

// runConfigUpgrade rewrites the user config with every current option,
// keeping existing values, after backing it up.
func runConfigUpgrade(out *output.Writer, configPath string) error {
	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("failed to back up config: %w", err)
	}

	existing, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("config file disappeared during upgrade")
	}
	if err := existing.WriteYAML(configPath); err != nil {
		return err
	}

	out.Success("Configuration upgraded")
	out.Statusf("📁", "Location: %s", configPath)
	out.Statusf("💾", "Backup: %s", backupPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, root *rootOptions, jsonOutput bool, source string) error {
	out := output.New(cmd.OutOrStdout())

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	var (
		cfg  *config.Config
		desc string
	)
	switch source {
	case "merged":
		cfg, err = config.LoadFile(cwd, root.configFile)
		if err != nil {
			return err
		}
		desc = "merged (defaults + user + project + env)"

	case "user":
		cfg, err = config.LoadUserConfig()
		if err != nil {
			return err
		}
		if cfg == nil {
			out.Warning("No user configuration file found")
			out.Statusf("📁", "Expected at: %s", config.GetUserConfigPath())
			out.Status("💡", "Run 'termdex config init' to create one")
			return nil
		}
		desc = fmt.Sprintf("user (%s)", config.GetUserConfigPath())

	case "project":
		path := config.ProjectConfigPath(cwd)
		if path == "" {
			out.Warning("No project configuration file found")
			out.Statusf("📁", "Expected .termdex.yaml in %s", cwd)
			return nil
		}
		if cfg, err = config.ReadFile(path); err != nil {
			return err
		}
		desc = fmt.Sprintf("project (%s)", path)

	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults"

	default:
		return fmt.Errorf("invalid source: %s (use: merged, user, project, defaults)", source)
	}

	if jsonOutput {
		return out.JSON(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out.Statusf("📋", "Configuration source: %s", desc)
	out.Newline()
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
