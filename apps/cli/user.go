package main

import (
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hsannu/connect/core/user"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	var username, deviceID string

	cmd := &cobra.Command{
		Use:   "login -u USERNAME",
		Short: "Log in; the password is prompted next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" {
				_ = cmd.Usage()
				return errHelp
			}
			fmt.Fprint(cli.out, "Enter password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return errors.Wrap(err, "reading password")
			}
			if len(pwd) == 0 {
				_ = cmd.Usage()
				return errHelp
			}

			lr := user.LoginRequest{Username: username, Password: string(pwd), DeviceID: deviceID}
			if err = lr.Validate(cli.validate); err != nil {
				return err
			}
			usr, err := cli.usrSvc.Login(cmd.Context(), lr)
			if err != nil {
				return err
			}
			return cli.print(usr, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s (%s)\n", usr.DisplayName(), usr.Username)
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "Device identifier sent to the portal")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.usrSvc.Logout(); err != nil {
				return errors.Wrap(err, "clearing session")
			}
			fmt.Fprintln(cli.out, "Logged out.")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := cli.currentUser()
			if err != nil {
				return err
			}
			return cli.print(usr, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", usr.DisplayName(), usr.Username)
				fmt.Fprintf(w, "id: %d\nrole: %s\n", usr.ID, usr.Role)
				if usr.Email != "" {
					fmt.Fprintf(w, "email: %s\n", usr.Email)
				}
				if len(usr.AdditionalRoles) > 0 {
					fmt.Fprintf(w, "additional roles: %s\n", strings.Join(usr.AdditionalRoles, ", "))
				}
			})
		},
	}
}
