package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookcatalog/internal/types"
)

func (a *app) themeCommand() *cobra.Command {
	printTheme := func(t types.Theme) error {
		if a.asJson {
			return a.printJson(map[string]types.Theme{"theme": t})
		}
		_, err := fmt.Fprintln(a.out, t)
		return err
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the current theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.api.Theme(cmd.Context())
			if err != nil {
				return err
			}
			return printTheme(t)
		},
	}

	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the light/dark theme",
		Args:  cobra.NoArgs,
		RunE:  get.RunE,
	}

	cmd.AddCommand(
		get,
		&cobra.Command{
			Use:       "set light|dark",
			Short:     "Choose the theme",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{string(types.ThemeLight), string(types.ThemeDark)},
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := a.api.SetTheme(cmd.Context(), types.Theme(args[0]))
				if err != nil {
					return err
				}
				return printTheme(t)
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Switch between light and dark",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				t, err := a.api.ToggleTheme(cmd.Context())
				if err != nil {
					return err
				}
				return printTheme(t)
			},
		},
	)
	return cmd
}
