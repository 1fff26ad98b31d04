// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

type contextKey string

// configKey stores the validated *config.Config in the command context.
const configKey contextKey = "config"

// configKeyAnnotation ties a command flag to the configuration key it overrides.
const configKeyAnnotation = "lancet_config_key"

// NewRootCommand creates a fresh command tree wired to the production browser
// launcher and history store.
func NewRootCommand() *cobra.Command {
	return newRootCmd(NewBrowserLauncher(), NewStoreProvider())
}

func newRootCmd(launcher browserLauncher, stores storeProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "lancet",
		Short:         "Lancet books timed-entry tickets through a real browser session.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			// 1. Config file, environment and flag overrides.
			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// 2. Build and validate the configuration object.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "lancet"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// 3. Logging.
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting Lancet",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))

			// 4. Hand the config to the subcommand.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./lancet.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newBookCmd(launcher, stores),
		newProbeCmd(launcher),
		newHistoryCmd(stores),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with a signal aware context and logs the failure, if any.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		logger := observability.GetLogger()
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled.")
		} else {
			logger.Error("Command execution failed", zap.Error(err))
		}
	}
	observability.Sync()
	return err
}

// getConfigFromContext retrieves the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if ctx == nil {
		return nil, errors.New("command context is not set")
	}
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not found in context")
	}
	return cfg, nil
}

// initializeConfig reads the config file and environment, then layers the flags the
// user actually set on top.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	var cfgFile string
	if f := cmd.Flags().Lookup("config"); f != nil {
		cfgFile = f.Value.String()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("lancet")
		v.SetConfigType("yaml")
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return bindFlags(cmd, v)
}

// bindFlag records the configuration key a flag overrides.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if err := cmd.Flags().SetAnnotation(flag, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("binding unknown flag %q: %v", flag, err))
	}
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], f); err != nil {
			errs = append(errs, fmt.Errorf("bind --%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
