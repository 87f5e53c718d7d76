package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/lumen-io/client/internal/account"
	"github.com/lumen-io/client/internal/common"
	"github.com/lumen-io/client/internal/models"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

func runRegister(cmd *cobra.Command, args []string) error {

	var input models.RegisterRequest

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First name").Value(&input.FirstName),
			huh.NewInput().Title("Last name").Value(&input.LastName),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("registration cancelled: %w", err)
	}

	if err := credentialsForm(&input.Email, &input.Password).Run(); err != nil {
		return fmt.Errorf("registration cancelled: %w", err)
	}

	input.Email = strings.TrimSpace(input.Email)

	ctx, cleanup := common.WithInterrupt(context.Background())
	defer cleanup()

	user, err := lumen.Accounts.Register(ctx, input)
	if err != nil {
		if errors.Is(err, account.ErrSecondFactorRequired) {
			fmt.Println(warningStyle.Render(account.UserMessage(err)))
			return nil
		}
		return errors.New(account.UserMessage(err))
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Account created!"))
	fmt.Printf("Signed in as: %s\n", user.GetName())
	fmt.Println()

	return nil
}

func init() {
	rootCmd.AddCommand(registerCmd)
}
