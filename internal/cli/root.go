// Package cli is the catalogctl command tree. Every command is a thin call into the HTTP API
// client; the server owns the session, so logging in here logs in the server's session slot.
package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bookcatalog/internal/client"
)

const defaultServer = "http://localhost:8080"

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type app struct {
	server  string
	asJson  bool
	timeout time.Duration

	in  *bufio.Reader
	out io.Writer
	api *client.Client

	// ttyFd is the descriptor of in when it is a terminal, otherwise -1
	ttyFd int
}

// NewRootCommand builds catalogctl reading prompts from in and writing results to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: bufio.NewReader(in), out: out, ttyFd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.ttyFd = int(f.Fd())
	}

	server := os.Getenv("CATALOG_SERVER")
	if server == "" {
		server = defaultServer
	}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Browse and manage the book catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			api, err := client.New(a.server, &http.Client{Timeout: a.timeout})
			if err != nil {
				return err
			}
			a.api = api
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.server, "server", server, "catalog server address (env CATALOG_SERVER)")
	root.PersistentFlags().BoolVar(&a.asJson, "json", false, "print results as JSON")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		a.loginCommand(),
		a.registerCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.booksCommand(),
		a.themeCommand(),
	)

	return root
}

func (a *app) prompt(label string) (string, error) {
	if _, err := fmt.Fprint(a.out, label+": "); err != nil {
		return "", err
	}

	line, err := a.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo from a terminal and falls back to a plain line otherwise.
func (a *app) promptPassword(label string) (string, error) {
	if a.ttyFd < 0 {
		return a.prompt(label)
	}

	if _, err := fmt.Fprint(a.out, label+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(a.ttyFd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func (a *app) printJson(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
