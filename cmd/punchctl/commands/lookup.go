package commands

import (
	"os"

	"punchpass-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lookupCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <email>",
	Short: "Looks a customer up by email through the site's customer search.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := createClient(cmd.Context())

		user, found, err := client.FetchCustomer(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("customer search", err)
		}
		if !found {
			cmd.PrintErrf("no customer found for %s\n", args[0])
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "First Name", "Last Name", "Phone", "Email"})
		t.AppendRow(table.Row{user.Id, user.FirstName, user.LastName, user.Phone, user.Email})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
