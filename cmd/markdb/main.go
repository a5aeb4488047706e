// Command markdb is the command line client of the markdb server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/maruel/markdb/internal/client"
	"github.com/maruel/markdb/internal/contract"
	"github.com/maruel/markdb/internal/userstore"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// errExit makes the process exit with 1 once the command already reported
// the failure.
var errExit = errors.New("exit 1")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		fs:     afero.NewOsFs(),
	}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errExit) && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "markdb: %v\n", err)
		}
		os.Exit(1)
	}
}

// app is the state shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	fs     afero.Fs

	baseURL string
	strict  bool
	noColor bool
}

func newRootCmd(a *app) *cobra.Command {
	baseURL := a.getenv("MARKDB_BASE_URL")
	if baseURL == "" {
		baseURL = client.DefaultBaseURL
	}
	cmd := &cobra.Command{
		Use:           "markdb",
		Short:         "Validate and store Markdown documents against Markdown schemas",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if a.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", baseURL, "Server URL ($MARKDB_BASE_URL)")
	cmd.PersistentFlags().BoolVar(&a.strict, "strict", false, "Check every response against the API contract")
	cmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	cmd.AddCommand(
		newValidateCmd(a),
		newListDocumentsCmd(a),
		newListSchemasCmd(a),
		newTagDocumentCmd(a),
		newCreateDocumentCmd(a),
		newUserCmd(a),
		newAdminCmd(a),
	)
	return cmd
}

// users returns the store of the current user.
func (a *app) users() (*userstore.Store, error) {
	dir, err := userstore.DefaultDir(a.getenv)
	if err != nil {
		return nil, err
	}
	return userstore.New(a.fs, dir), nil
}

// client returns an API client authenticated as the current user, if any.
func (a *app) client() (*client.Client, error) {
	return a.newClient(true)
}

// anonClient returns an API client sending no token, so that a stale one
// cannot get in the way of logging in again.
func (a *app) anonClient() (*client.Client, error) {
	return a.newClient(false)
}

func (a *app) newClient(withToken bool) (*client.Client, error) {
	var opts []client.Option
	if a.strict {
		checker, err := contract.NewChecker()
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithChecker(checker))
	}
	if !withToken {
		return client.New(a.baseURL, opts...), nil
	}
	users, err := a.users()
	if err != nil {
		return nil, err
	}
	u, err := users.Get()
	if err != nil {
		return nil, err
	}
	if u != nil && u.Token != "" {
		opts = append(opts, client.WithToken(u.Token))
	}
	return client.New(a.baseURL, opts...), nil
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
)

// fail prints msg in red to stderr and returns errExit.
func (a *app) fail(format string, args ...any) error {
	red.Fprintf(a.stderr, format+"\n", args...)
	return errExit
}

// apiFail reports err, using the server message for API errors.
func (a *app) apiFail(err error) error {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return a.fail("Error: %s", apiErr.Message)
	}
	return err
}
