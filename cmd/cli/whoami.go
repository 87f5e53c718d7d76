package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the signed in user",
	PreRunE: preAuthenticateE,
	RunE: func(cmd *cobra.Command, args []string) error {
		user := lumen.State.State().User
		if user == nil {
			return fmt.Errorf("not signed in")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			out, err := json.MarshalIndent(user, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Println(headerStyle.Render(user.GetName()))
		fmt.Println(labelStyle.Render("Email") + user.Email)
		if len(user.Role) > 0 {
			fmt.Println(labelStyle.Render("Role") + string(user.Role))
		}
		fmt.Println(labelStyle.Render("ID") + user.ID)
		return nil
	},
}

func init() {
	whoamiCmd.Flags().Bool("json", false, "Print the user as JSON")
	rootCmd.AddCommand(whoamiCmd)
}
