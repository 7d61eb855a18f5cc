package commands

import (
	"github.com/spf13/cobra"

	"github.com/openstack-tools/barbican-cli/internal/auth"
	"github.com/openstack-tools/barbican-cli/internal/barbican"
	"github.com/openstack-tools/barbican-cli/internal/cloudcfg"
	"github.com/openstack-tools/barbican-cli/internal/logging"
)

// RunContext is the shared state handed to every subcommand: the parsed
// option record, the logger, and the lazily-resolved client handle.
type RunContext struct {
	Options *auth.Options
	Logger  *logging.Logger

	root   *cobra.Command
	client *barbican.Client
}

// Client resolves the credentials on first use and returns the client
// handle. Resolution happens at most once per invocation.
func (rc *RunContext) Client() (*barbican.Client, error) {
	if rc.client != nil {
		return rc.client, nil
	}
	if rc.Logger == nil {
		rc.Logger = logging.New(false, true)
	}

	resolver := auth.NewResolver(rc.Options,
		auth.WithLogger(rc.Logger),
		auth.WithUsage(func() string { return rc.root.UsageString() }),
	)
	client, err := resolver.Resolve()
	if err != nil {
		return nil, err
	}
	rc.client = client
	return client, nil
}

// NewRootCommand wires the full command tree.
func NewRootCommand(version string) *cobra.Command {
	var (
		noColor bool
		debug   bool
	)

	rc := &RunContext{}

	rootCmd := &cobra.Command{
		Use:     "barbican",
		Short:   "Command-line interface to the Barbican key manager API",
		Long: `barbican manages secrets, containers, and orders in an OpenStack
Barbican deployment.

Credentials come from --os-* flags, the matching OS_* environment
variables, or a named profile in clouds.yaml (--os-cloud).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rc.Logger = logging.New(debug, noColor)

			if rc.Options.CloudName != "" {
				cloud, err := cloudcfg.Load(rc.Options.CloudName)
				if err != nil {
					return err
				}
				rc.Options.ApplyCloud(cloud)
				rc.Logger.Debug("Applied cloud profile '%s'", rc.Options.CloudName)
			}
			return nil
		},
	}

	rc.Options = auth.Register(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rc.root = rootCmd

	rootCmd.AddCommand(
		NewSecretCommand(rc),
		NewContainerCommand(rc),
		NewOrderCommand(rc),
		NewDoctorCommand(rc),
		NewCompletionCommand(rc),
	)

	return rootCmd
}
