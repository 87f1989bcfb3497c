package app

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/component-base/cli/globalflag"

	"github.com/autopeer-io/remoteops/cmd/ro-processor/app/options"
	"github.com/autopeer-io/remoteops/pkg/log"
)

const commandName = "ro-processor"

func NewProcessorCommand(ctx context.Context) *cobra.Command {
	opts := options.NewProcessorOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:  commandName,
		Long: "The RO Processor correlates remote-operation requests with vehicle responses and drives their lifecycle.",
		// Errors are already logged by RunE.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Flags(), configFile, opts); err != nil {
				return err
			}

			log.Init(opts.Log)
			defer log.Sync()

			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				log.Info(fmt.Sprintf(format, args...))
			})); err != nil {
				log.Warn("Failed to set GOMAXPROCS", "error", err)
			}

			if err := opts.Validate(); err != nil {
				log.Error(err, "invalid options")
				return err
			}

			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			p, err := cfg.NewProcessor(ctx)
			if err != nil {
				log.Error(err, "failed to create processor")
				return err
			}

			if err := p.Run(ctx); err != nil {
				log.Error(err, "processor stopped with error")
				return err
			}
			return nil
		},
	}

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML or JSON configuration file. Flags override its values.")

	fs := cmd.Flags()
	namedfs := opts.Flags()
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	cmd.AddCommand(newInspectCommand(ctx, &configFile))

	return cmd
}

// loadConfig merges the configuration file into opts. Flags set on the
// command line win over the file; the file wins over flag defaults.
func loadConfig(fs *pflag.FlagSet, configFile string, opts any) error {
	v := viper.New()
	v.SetEnvPrefix("RO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}
