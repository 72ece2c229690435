package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type (
	ptsimApp struct {
		baseCmd    *cobra.Command
		baseConfig *baseConfiguration
	}
)

// New creates a new ptsim application
func New(logF LoggerFactory) *ptsimApp {
	baseCmd, baseConfig := newBaseCmd(logF)
	return &ptsimApp{baseCmd, baseConfig}
}

// Execute runs the application
func (a *ptsimApp) Execute(ctx context.Context) (err error) {
	defer func() {
		if a.baseConfig.observe != nil {
			err = errors.Join(err, a.baseConfig.observe.Shutdown())
		}
	}()

	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd(logF LoggerFactory) (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{loggerBuilder: logF}
	runConfig := &runConfiguration{Base: config}
	// baseCmd represents the base command when called without any subcommands
	var baseCmd = &cobra.Command{
		Use:   "ptsim [flags] commands...",
		Short: "Paged virtual memory simulator",
		Long: `Paged virtual memory simulator executes the stream of commands given as arguments:
  np <proc_id> <page_count>           create process with page_count pages
  pfm                                 print free page map
  ppt <proc_id>                       print page table of the process
  kp <proc_id>                        kill process, releasing its pages
  sb <proc_id> <vaddr> <value>        store byte into virtual address
  lb <proc_id> <vaddr>                load byte from virtual address`,
		Example:       "ptsim np 1 2 pfm sb 1 0 42 lb 1 0 ppt 1 kp 1",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// You can bind cobra and viper in a few locations, but PersistencePreRunE on the base command works well
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulator(cmd.Context(), runConfig, args)
		},
	}
	// everything from the first command name on is the command stream, so
	// negative numbers in it are not parsed as flags
	baseCmd.Flags().SetInterspersed(false)
	config.addConfigurationFlags(baseCmd)
	runConfig.addFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	var errs []error

	if err := config.initializeConfig(cmd); err != nil {
		errs = append(errs, fmt.Errorf("reading configuration: %w", err))
	}

	log, err := config.initLogger(cmd)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("initializing logger: %w", err))...)
	}

	metrics, err := cmd.Flags().GetString(keyMetrics)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading flag %q: %w", keyMetrics, err))
	}
	tracing, err := cmd.Flags().GetString(keyTracing)
	if err != nil {
		errs = append(errs, fmt.Errorf("reading flag %q: %w", keyTracing, err))
	}
	if len(errs) != 0 {
		return errors.Join(append(errs, config.logCfg.Close())...)
	}

	obs, err := newObservability(metrics, tracing, log)
	if err != nil {
		errs = append(errs, fmt.Errorf("initializing observability: %w", err))
	}
	// exporters may log while shutting down so the log file is closed last
	obs.shutdownFuncs = append(obs.shutdownFuncs, func(context.Context) error { return config.logCfg.Close() })
	config.observe = obs

	return errors.Join(errs...)
}

// initializeConfig reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	config.initConfigFileLocation()

	if config.configFileExists() {
		v.SetConfigFile(config.CfgFile)
		// config.props is in java properties format, viper can't guess it from the extension
		v.SetConfigType("properties")
	}

	// Attempt to read the config file, gracefully ignoring errors
	// caused by a config file not being found. Return an error
	// if we cannot parse the config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if there isn't a config file
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// When we bind flags to environment variables expect that the
	// environment variables are prefixed, e.g. a flag like --number
	// binds to an environment variable PTSIM_NUMBER. This helps
	// avoid conflicts.
	v.SetEnvPrefix(envPrefix)

	// Bind to environment variables
	// Works great for simple config names, but needs help for names
	// like --page-size which we fix in the bindFlags function
	v.AutomaticEnv()

	// Bind the current command's flags to viper
	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}

		// Environment variables can't have dashes in them, so bind them to their equivalent
		// keys with underscores, e.g. --page-size to PTSIM_PAGE_SIZE
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("seting flag %q value: %w", f.Name, err))
				return
			}
		}
	})

	return errors.Join(bindFlagErr...)
}
