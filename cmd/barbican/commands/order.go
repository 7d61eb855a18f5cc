package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openstack-tools/barbican-cli/internal/barbican"
)

// NewOrderCommand groups the order operations.
func NewOrderCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage secret generation orders",
	}
	cmd.AddCommand(
		newOrderGetCommand(rc),
		newOrderListCommand(rc),
		newOrderCreateCommand(rc),
		newOrderDeleteCommand(rc),
	)
	return cmd
}

func newOrderGetCommand(rc *RunContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <order href or id>",
		Short: "Retrieve an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			order, err := client.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(order)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Order href:\t%s\n", order.OrderRef)
			fmt.Fprintf(w, "Type:\t%s\n", order.Type)
			fmt.Fprintf(w, "Status:\t%s\n", order.Status)
			if order.SecretRef != "" {
				fmt.Fprintf(w, "Secret href:\t%s\n", order.SecretRef)
			}
			if order.ErrorReason != "" {
				fmt.Fprintf(w, "Error:\t%s\n", order.ErrorReason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newOrderListCommand(rc *RunContext) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			orders, total, err := client.ListOrders(cmd.Context(), barbican.ListOptions{
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER REF\tTYPE\tSTATUS\tSECRET REF")
			for _, order := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					order.OrderRef, order.Type, order.Status, order.SecretRef)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			rc.Logger.Debug("Listed %d of %d orders", len(orders), total)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of orders to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "List offset for paging")

	return cmd
}

func newOrderCreateCommand(rc *RunContext) *cobra.Command {
	var (
		orderType   string
		name        string
		algorithm   string
		bitLength   int
		mode        string
		contentType string
		expiration  string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit an order to generate a secret server-side",
		Long: `Submit a generation order and print its href.

Examples:
  barbican order create --name session-key --algorithm aes --bit-length 256 --mode cbc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}

			ref, err := client.CreateOrder(cmd.Context(), &barbican.Order{
				Type: orderType,
				Meta: barbican.OrderMeta{
					Name:               name,
					Algorithm:          algorithm,
					BitLength:          bitLength,
					Mode:               mode,
					PayloadContentType: contentType,
					Expiration:         expiration,
				},
			})
			if err != nil {
				return err
			}

			fmt.Println(ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&orderType, "type", "key", "Order type (key, asymmetric)")
	cmd.Flags().StringVar(&name, "name", "", "Name for the generated secret")
	cmd.Flags().StringVar(&algorithm, "algorithm", "aes", "Generation algorithm")
	cmd.Flags().IntVar(&bitLength, "bit-length", 256, "Key bit length")
	cmd.Flags().StringVar(&mode, "mode", "cbc", "Cipher mode")
	cmd.Flags().StringVar(&contentType, "payload-content-type", "application/octet-stream", "Content type for the generated payload")
	cmd.Flags().StringVar(&expiration, "expiration", "", "Expiration timestamp (RFC 3339)")

	return cmd
}

func newOrderDeleteCommand(rc *RunContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <order href or id>",
		Short: "Delete an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rc.Client()
			if err != nil {
				return err
			}
			if err := client.DeleteOrder(cmd.Context(), args[0]); err != nil {
				return err
			}
			rc.Logger.Info("Deleted order %s", args[0])
			return nil
		},
	}
	return cmd
}
