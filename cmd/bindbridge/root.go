package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/internal/config"
	"github.com/wippyai/bindbridge/iteration"
	"github.com/wippyai/bindbridge/loader"
	"github.com/wippyai/bindbridge/manifest"
	"github.com/wippyai/bindbridge/overload"
	"github.com/wippyai/bindbridge/reflectbind"
	"github.com/wippyai/bindbridge/registry"
	"github.com/wippyai/bindbridge/wasmbind"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bindbridge",
		Short: "Cross-technology object interop toolkit",
		Long: `bindbridge checks binding manifests against a shared type registry,
prints the registered types and runs the bindings challenge.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./"+config.DefaultFile+")")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (console|json)")
	pf.Bool("keep-going", false, "keep loading modules after a failure")

	_ = root.RegisterFlagCompletionFunc("log-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"console", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(newCheckCmd(a), newTypesCmd(a), newDemoCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log

	setLoggers(log)
	if cfg.File != "" {
		log.Debug("config loaded", zap.String("file", cfg.File))
	}
	return nil
}

func setLoggers(log *zap.Logger) {
	host.SetLogger(log.Named("host"))
	handle.SetLogger(log.Named("handle"))
	registry.SetLogger(log.Named("registry"))
	cast.SetLogger(log.Named("cast"))
	overload.SetLogger(log.Named("overload"))
	iteration.SetLogger(log.Named("iteration"))
	reflectbind.SetLogger(log.Named("reflectbind"))
	wasmbind.SetLogger(log.Named("wasmbind"))
	manifest.SetLogger(log.Named("manifest"))
	loader.SetLogger(log.Named("loader"))
}
