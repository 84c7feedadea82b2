package cli

import (
	"fmt"
	"slices"
	"strings"

	"pinrelay/internal/types"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage registered clients",
	Long:  `Provision, view and list registry records. PINs are never printed.`,
}

var clientsPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Create or update clients from a YAML file",
	Args:  cobra.NoArgs,
	RunE:  runClientsPut,
}

var clientsGetCmd = &cobra.Command{
	Use:   "get [client-key]",
	Short: "Show one client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsGet,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	Args:  cobra.NoArgs,
	RunE:  runClientsList,
}

// clientsFile is a flag for the put command.
var clientsFile string

func init() {
	clientsPutCmd.Flags().StringVarP(&clientsFile, "file", "f", "", "YAML file with a top-level clients list")
	_ = clientsPutCmd.MarkFlagRequired("file")

	clientsCmd.AddCommand(clientsPutCmd)
	clientsCmd.AddCommand(clientsGetCmd)
	clientsCmd.AddCommand(clientsListCmd)
	rootCmd.AddCommand(clientsCmd)
}

func runClientsPut(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	clients, err := LoadClientsFile(clientsFile)
	if err != nil {
		return err
	}
	b, err := openBackends(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Close()
	}()
	if err := PutClients(ctx, b.Clients, clients); err != nil {
		return err
	}
	for _, c := range clients {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Key, c.FullName)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d client(s) written\n", len(clients))
	return nil
}

func runClientsGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackends(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Close()
	}()
	c, err := b.Clients.GetClient(ctx, args[0])
	if err != nil {
		return fmt.Errorf("client %s: %w", args[0], err)
	}
	out, err := json.MarshalIndent(c.View(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runClientsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	b, err := openBackends(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Close()
	}()
	clients, err := b.Clients.ListClients(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(clients))
	for k := range clients {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		c := clients[k]
		phone := types.MaskPhone(c.Phone)
		if phone == "" {
			phone = "-"
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join([]string{k, c.FullName, phone}, "\t"))
	}
	return nil
}
