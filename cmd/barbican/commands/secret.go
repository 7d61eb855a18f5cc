package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openstack-tools/barbican-cli/internal/barbican"
	cerrors "github.com/openstack-tools/barbican-cli/internal/errors"
)

// NewSecretCommand groups the secret operations.
func NewSecretCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage stored secrets",
	}
	cmd.AddCommand(
		newSecretGetCommand(rc),
		newSecretListCommand(rc),
		newSecretStoreCommand(rc),
		newSecretDeleteCommand(rc),
	)
	return cmd
}

func newSecretGetCommand(rc *RunContext) *cobra.Command {
	var (
		payload     bool
		contentType string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "get <secret href or id>",
		Short: "Retrieve a secret's metadata or payload",
		Long: `Retrieve a secret by href or id.

Examples:
  # Show metadata
  barbican secret get 0207414d-c23b-47a3-9d1a-54c9bbd0d63b

  # Print the decrypted payload, suitable for scripting
  barbican secret get --payload 0207414d-c23b-47a3-9d1a-54c9bbd0d63b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if payload {
				data, _, err := client.GetSecretPayload(ctx, args[0], contentType)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			secret, err := client.GetSecret(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(secret)
			}
			printSecret(secret)
			return nil
		},
	}

	cmd.Flags().BoolVar(&payload, "payload", false, "Fetch the decrypted payload instead of metadata")
	cmd.Flags().StringVar(&contentType, "payload-content-type", "", "Content type to request for the payload")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output metadata as JSON")

	return cmd
}

func newSecretListCommand(rc *RunContext) *cobra.Command {
	var (
		name   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}

			secrets, total, err := client.ListSecrets(cmd.Context(), barbican.ListOptions{
				Name:   name,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SECRET REF\tNAME\tSTATUS\tTYPE")
			for _, secret := range secrets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					secret.SecretRef, secret.Name, secret.Status, secret.SecretType)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			rc.Logger.Debug("Listed %d of %d secrets", len(secrets), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by secret name")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of secrets to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "List offset for paging")

	return cmd
}

func newSecretStoreCommand(rc *RunContext) *cobra.Command {
	var (
		name        string
		payload     string
		payloadFile string
		contentType string
		secretType  string
		algorithm   string
		bitLength   int
		mode        string
	)

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store a new secret",
		Long: `Store a new secret and print its href.

Examples:
  barbican secret store --name db-password --payload 's3cret'
  barbican secret store --name tls-key --file key.pem --payload-content-type application/pkcs8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload == "" && payloadFile == "" {
				return cerrors.UserError{
					Message:    "A payload is required",
					Suggestion: "Pass --payload <value> or --file <path>",
				}
			}
			if payload != "" && payloadFile != "" {
				return cerrors.UserError{
					Message:    "--payload and --file are mutually exclusive",
					Suggestion: "Provide the payload inline or from a file, not both",
				}
			}
			if payloadFile != "" {
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return cerrors.UserError{
						Message:    fmt.Sprintf("Failed to read payload file %s", payloadFile),
						Details:    err.Error(),
						Suggestion: "Check the path and file permissions",
						Err:        err,
					}
				}
				payload = string(data)
			}

			client, err := rc.Client()
			if err != nil {
				return err
			}

			ref, err := client.StoreSecret(cmd.Context(), &barbican.Secret{
				Name:               name,
				Payload:            payload,
				PayloadContentType: contentType,
				SecretType:         secretType,
				Algorithm:          algorithm,
				BitLength:          bitLength,
				Mode:               mode,
			})
			if err != nil {
				return err
			}

			fmt.Println(ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human-readable secret name")
	cmd.Flags().StringVar(&payload, "payload", "", "Secret payload")
	cmd.Flags().StringVar(&payloadFile, "file", "", "Read the payload from a file")
	cmd.Flags().StringVar(&contentType, "payload-content-type", "", "Payload content type (default text/plain)")
	cmd.Flags().StringVar(&secretType, "secret-type", "opaque", "Secret type (opaque, symmetric, private, public, certificate, passphrase)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Algorithm metadata (e.g. aes)")
	cmd.Flags().IntVar(&bitLength, "bit-length", 0, "Bit length metadata")
	cmd.Flags().StringVar(&mode, "mode", "", "Cipher mode metadata (e.g. cbc)")

	return cmd
}

func newSecretDeleteCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <secret href or id>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			if err := client.DeleteSecret(cmd.Context(), args[0]); err != nil {
				return err
			}
			rc.Logger.Info("Deleted secret %s", args[0])
			return nil
		},
	}
	return cmd
}

func printSecret(secret *barbican.Secret) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Secret href:\t%s\n", secret.SecretRef)
	fmt.Fprintf(w, "Name:\t%s\n", secret.Name)
	fmt.Fprintf(w, "Status:\t%s\n", secret.Status)
	fmt.Fprintf(w, "Type:\t%s\n", secret.SecretType)
	if secret.Algorithm != "" {
		fmt.Fprintf(w, "Algorithm:\t%s\n", secret.Algorithm)
	}
	if secret.BitLength > 0 {
		fmt.Fprintf(w, "Bit length:\t%d\n", secret.BitLength)
	}
	if secret.Mode != "" {
		fmt.Fprintf(w, "Mode:\t%s\n", secret.Mode)
	}
	if secret.Expiration != nil {
		fmt.Fprintf(w, "Expiration:\t%s\n", secret.Expiration)
	}
	if secret.Created != nil {
		fmt.Fprintf(w, "Created:\t%s\n", secret.Created)
	}
	_ = w.Flush()
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
