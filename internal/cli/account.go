package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hexhold/hexhold/internal/client/identity"
)

func newRegisterCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			cred, err := c.Session.Register(context.Background(), user, pass)
			if err != nil {
				return err
			}

			fmt.Printf("Registered as %s (%s)\n", cred.Username, cred.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			cred, err := c.Session.Login(context.Background(), user, pass)
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", cred.Username, cred.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Purely local: drop the identity file
			if err := identity.NewStore(cfg.IdentityFile).Clear(); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connectSignedIn(cfg, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			cred, err := c.Me()
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", cred.Username, cred.ID)
			return nil
		},
	}
}
