package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openstack-tools/barbican-cli/internal/barbican"
	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
)

// NewContainerCommand groups the container operations.
func NewContainerCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Manage secret containers",
	}
	cmd.AddCommand(
		newContainerGetCommand(rc),
		newContainerListCommand(rc),
		newContainerCreateCommand(rc),
		newContainerDeleteCommand(rc),
	)
	return cmd
}

func newContainerGetCommand(rc *RunContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <container href or id>",
		Short: "Retrieve a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			container, err := client.GetContainer(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(container)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Container href:\t%s\n", container.ContainerRef)
			fmt.Fprintf(w, "Name:\t%s\n", container.Name)
			fmt.Fprintf(w, "Type:\t%s\n", container.Type)
			fmt.Fprintf(w, "Status:\t%s\n", container.Status)
			for _, ref := range container.SecretRefs {
				fmt.Fprintf(w, "Secret:\t%s (%s)\n", ref.SecretRef, ref.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newContainerListCommand(rc *RunContext) *cobra.Command {
	var (
		name   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			containers, total, err := client.ListContainers(cmd.Context(), barbican.ListOptions{
				Name:   name,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTAINER REF\tNAME\tTYPE\tSTATUS\tSECRETS")
			for _, container := range containers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					container.ContainerRef, container.Name, container.Type,
					container.Status, len(container.SecretRefs))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			rc.Logger.Debug("Listed %d of %d containers", len(containers), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by container name")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of containers to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "List offset for paging")

	return cmd
}

func newContainerCreateCommand(rc *RunContext) *cobra.Command {
	var (
		name          string
		containerType string
		secretRefs    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a container of secret references",
		Long: `Create a container and print its href.

Each --secret takes either a bare secret href or name=href.

Examples:
  barbican container create --name tls --type certificate \
    --secret certificate=https://barbican.example.com/v1/secrets/0207414d \
    --secret private_key=https://barbican.example.com/v1/secrets/7c3a9b21`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(secretRefs) == 0 {
				return cerrors.UserError{
					Message:    "At least one secret reference is required",
					Suggestion: "Pass --secret <href> or --secret <name>=<href>",
				}
			}

			container := &barbican.Container{Name: name, Type: containerType}
			for _, raw := range secretRefs {
				if refName, href, found := strings.Cut(raw, "="); found {
					container.SecretRefs = append(container.SecretRefs,
						barbican.ContainerSecretRef{Name: refName, SecretRef: href})
				} else {
					container.SecretRefs = append(container.SecretRefs,
						barbican.ContainerSecretRef{SecretRef: raw})
				}
			}

			client, err := rc.Client()
			if err != nil {
				return err
			}
			ref, err := client.CreateContainer(cmd.Context(), container)
			if err != nil {
				return err
			}

			fmt.Println(ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable container name")
	cmd.Flags().StringVar(&containerType, "type", "generic", "Container type (generic, rsa, certificate)")
	cmd.Flags().StringArrayVar(&secretRefs, "secret", nil, "Secret reference, optionally name=href (repeatable)")

	return cmd
}

func newContainerDeleteCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <container href or id>",
		Short: "Delete a container (referenced secrets are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			if err := client.DeleteContainer(cmd.Context(), args[0]); err != nil {
				return err
			}
			rc.Logger.Info("Deleted container %s", args[0])
			return nil
		},
	}
	return cmd
}
