package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieazie/doc-extract/internal/authz"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fromStdin {
				pw, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = pw
			}
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			st, err := m.Login(cmd.Context(), model.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), newSessionView(st.User, st.Tenant, st.Tokens, st.Verified, st.Permissions))
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsOneRequired("password", "password-stdin")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and wipe the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			m.Logout(cmd.Context())
			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]bool{"authenticated": false})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	var verify bool
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if verify {
				select {
				case <-m.Revalidation():
				case <-time.After(wait):
					return fmt.Errorf("verification: %w: no answer within %s", errs.ErrTransient, wait)
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}
			st := m.State()
			if !st.IsAuthenticated() {
				return errs.ErrNotAuthenticated
			}
			return a.render(cmd.OutOrStdout(), newSessionView(st.User, st.Tenant, st.Tokens, st.Verified, st.Permissions))
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "wait until the backend confirmed the session")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long --verify waits")
	return cmd
}

func (a *app) switchTenantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch-tenant <tenant-id>",
		Short: "Move the session into another tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			st, err := m.SwitchTenant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), newSessionView(st.User, st.Tenant, st.Tokens, st.Verified, st.Permissions))
		},
	}
}

func (a *app) refreshTenantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-tenant",
		Short: "Re-fetch the current tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			st, err := m.RefreshTenant(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), newSessionView(st.User, st.Tenant, st.Tokens, st.Verified, st.Permissions))
		},
	}
}

func (a *app) canCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <permission>...",
		Short: "Check permissions of the signed-in user; exits 3 if any is denied",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			res := make(map[string]bool, len(args))
			denied := false
			for _, p := range args {
				ok := m.HasPermission(authz.Permission(p))
				res[p] = ok
				denied = denied || !ok
			}
			if a.output == "json" {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				for _, p := range args {
					verdict := "denied"
					if res[p] {
						verdict = "granted"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, verdict)
				}
			}
			if denied {
				return errDenied
			}
			return nil
		},
	}
}

func (a *app) permissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "List permissions of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			perms := m.Permissions()
			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), perms)
			}
			for _, p := range perms {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

// rolesCmd prints the static role table; it needs no session.
func rolesCmd(output *string) *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Show the role to permission table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles := authz.AllRoles()
			if only != "" {
				r, ok := authz.ParseRole(only)
				if !ok {
					return fmt.Errorf("%w: unknown role %q", errs.ErrInvalidInput, only)
				}
				roles = []authz.Role{r}
			}
			table := make(map[authz.Role][]authz.Permission, len(roles))
			for _, r := range roles {
				table[r] = authz.PermissionsFor(r).List()
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), table)
			}
			w := cmd.OutOrStdout()
			for _, r := range roles {
				fmt.Fprintf(w, "%s (%d)\n", r, len(table[r]))
				for _, p := range table[r] {
					fmt.Fprintf(w, "  %s\n", p)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "role", "", "show a single role")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("%w: empty password", errs.ErrInvalidInput)
	}
	return pw, nil
}
