package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookcatalog/internal/types"
)

func (a *app) loginCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = a.prompt("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.promptPassword("Password"); err != nil {
					return err
				}
			}

			u, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			if a.asJson {
				return a.printJson(u)
			}
			_, err = fmt.Fprintf(a.out, "Logged in as %s (%s %s)\n", u.Username, u.FirstName, u.LastName)
			return err
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var reg types.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts := []struct {
				label string
				dst   *string
			}{
				{"Email", &reg.Email},
				{"Username", &reg.Username},
				{"First name", &reg.FirstName},
				{"Last name", &reg.LastName},
			}

			for _, p := range prompts {
				if *p.dst != "" {
					continue
				}
				v, err := a.prompt(p.label)
				if err != nil {
					return err
				}
				*p.dst = v
			}

			if reg.Password == "" {
				pw, err := a.promptPassword("Password")
				if err != nil {
					return err
				}
				reg.Password = pw
			}

			u, err := a.api.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}

			if a.asJson {
				return a.printJson(u)
			}
			_, err = fmt.Fprintf(a.out, "Registered and logged in as %s (id %d)\n", u.Username, u.Id)
			return err
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "email")
	cmd.Flags().StringVar(&reg.Username, "username", "", "username")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (prompted when omitted)")
	cmd.Flags().BoolVar(&reg.IsAuthor, "author", false, "register as an author")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.api.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(a.out, "Logged out")
			return err
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := a.api.Session
			if refresh {
				session = a.api.RefreshSession
			}

			s, err := session(cmd.Context())
			if err != nil {
				return err
			}

			if a.asJson {
				return a.printJson(s)
			}

			if !s.Authenticated || s.User == nil {
				_, err = fmt.Fprintln(a.out, "Not logged in")
				return err
			}

			role := "reader"
			if s.IsAuthor {
				role = "author"
			}
			_, err = fmt.Fprintf(a.out, "%s <%s>, %s, purchased %v\n", s.User.Username, s.User.Email, role, s.User.PurchasedBooks)
			return err
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the account from the server's identity catalog")
	return cmd
}
