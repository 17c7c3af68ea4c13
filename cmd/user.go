package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vynguyen175/vizion/internal/auth"
)

var (
	userName     string
	userEmail    string
	userPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		u, err := s.auth.Register(ctx, userName, userEmail, userPassword)
		if err != nil {
			if errors.Is(err, auth.ErrMissingFields) || errors.Is(err, auth.ErrEmailTaken) {
				return errors.New(auth.Message(err))
			}
			return err
		}
		fmt.Printf("✓ Created user %s <%s> (%s)\n", u.Name, u.Email, u.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password")
}
