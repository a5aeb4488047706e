package main

import (
	"errors"
	"net/http"

	"github.com/maruel/markdb/internal/client"
	"github.com/maruel/markdb/internal/userstore"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the current user",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "login <email> <password>",
			Short: "Login with email and password",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.anonClient()
				if err != nil {
					return err
				}
				res, err := c.Login(cmd.Context(), args[0], args[1])
				var apiErr *client.Error
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
					return a.fail("Invalid email or password")
				}
				if err != nil {
					return a.apiFail(err)
				}
				users, err := a.users()
				if err != nil {
					return err
				}
				if err := users.Set(&userstore.StoredUser{ID: res.ID, Name: res.Name, Email: res.Email, Token: res.Token}); err != nil {
					return err
				}
				green.Fprintln(a.stdout, "Login successful")
				dim.Fprintf(a.stdout, "Name: %s\n", res.Name)
				dim.Fprintf(a.stdout, "Email: %s\n", res.Email)
				return nil
			},
		},
		&cobra.Command{
			Use:   "get",
			Short: "Get the current user",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				users, err := a.users()
				if err != nil {
					return err
				}
				u, err := users.Get()
				if err != nil {
					return err
				}
				if u == nil {
					yellow.Fprintln(a.stdout, "No user set")
					dim.Fprintln(a.stdout, `Use "markdb user login <email> <password>" to set a user`)
					return nil
				}
				green.Fprintln(a.stdout, "Current user:")
				bold.Fprintln(a.stdout, u.Name)
				dim.Fprintf(a.stdout, "ID: %s\n", u.ID)
				dim.Fprintf(a.stdout, "Email: %s\n", u.Email)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the current user",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				users, err := a.users()
				if err != nil {
					return err
				}
				if err := users.Clear(); err != nil {
					return err
				}
				green.Fprintln(a.stdout, "User cleared successfully")
				return nil
			},
		},
	)
	return cmd
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "wipe <password>",
		Short: "Wipe all data from the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yellow.Fprintln(a.stdout, "WARNING: This will delete ALL data from the database!")
			c, err := a.anonClient()
			if err != nil {
				return err
			}
			res, err := c.Wipe(cmd.Context(), args[0])
			var apiErr *client.Error
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				return a.fail("Invalid admin password")
			}
			if err != nil {
				return a.apiFail(err)
			}
			green.Fprintln(a.stdout, "Database wiped successfully")
			dim.Fprintln(a.stdout, "\nDeleted counts:")
			dim.Fprintf(a.stdout, "  Users: %d\n", res.DeletedCounts.Users)
			dim.Fprintf(a.stdout, "  Schemas: %d\n", res.DeletedCounts.Schemas)
			dim.Fprintf(a.stdout, "  Documents: %d\n", res.DeletedCounts.Documents)
			dim.Fprintf(a.stdout, "  Tags: %d\n", res.DeletedCounts.Tags)
			dim.Fprintf(a.stdout, "  Extracted: %d\n", res.DeletedCounts.Extracted)
			return nil
		},
	})
	return cmd
}
