package commands

import (
	"github.com/spf13/cobra"

	"github.com/openstack-tools/barbican-cli/internal/auth"
	"github.com/openstack-tools/barbican-cli/internal/barbican"
	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
)

// NewDoctorCommand creates the credential diagnostics command.
func NewDoctorCommand(rc *RunContext) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credential configuration",
		Long: `Diagnose the authentication configuration.

Reports which authentication mode the supplied options resolve to and
whether the required fields for that mode are present. With --connect,
also issues a token against the identity service and resolves the
key-manager endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := auth.NewResolver(rc.Options, auth.WithLogger(rc.Logger))

			mode := resolver.Mode()
			rc.Logger.Info("Authentication mode: %s", mode)

			client, err := resolver.Resolve()
			if err != nil {
				rc.Logger.Error("Credential resolution failed")
				return err
			}
			rc.Logger.Info("Credentials resolve to a %s client",
				clientShape(client.Authenticated()))

			if !connect {
				rc.Logger.Info("Pass --connect to verify against the live services")
				return nil
			}

			endpoint, err := client.Endpoint(cmd.Context())
			if err != nil {
				return cerrors.AuthError("endpoint discovery", err)
			}
			rc.Logger.Info("Key-manager endpoint: %s", endpoint)

			// A one-item list exercises authentication end to end.
			if client.Authenticated() {
				if _, _, err := client.ListSecrets(cmd.Context(), listProbe()); err != nil {
					return cerrors.AuthError("API probe", err)
				}
				rc.Logger.Info("Authenticated API probe succeeded")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "Verify against the live identity and key-manager services")
	return cmd
}

func listProbe() barbican.ListOptions {
	return barbican.ListOptions{Limit: 1}
}

func clientShape(authenticated bool) string {
	if authenticated {
		return "session-backed"
	}
	return "no-auth"
}
