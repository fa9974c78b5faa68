package main

import (
	"context"
	"errors"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc   *user.Service
	repo     chat.Repository
	chatOpts chat.Options
	logger   core.Logger
	validate *validator.Validate
	out      io.Writer

	output string // text | json | yaml
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "connect",
		Short:         "HSANNU Connect messaging from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.checkOutput()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.PersistentFlags().StringVarP(&cli.output, "output", "o", outputText, "Output format (text, json, yaml)")

	cmd.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.conversationsCmd(),
		cli.messagesCmd(),
		cli.sendCmd(),
		cli.watchCmd(),
	)
	return cmd
}

// currentUser is the logged-in user; commands acting on the chat require one.
func (cli *commandLine) currentUser() (user.User, error) {
	usr, err := cli.usrSvc.Current()
	if err == user.ErrNoSession {
		return user.User{}, errors.New("not logged in: run `connect login -u USERNAME` first")
	}
	return usr, err
}

func (cli *commandLine) newController(usr user.User, opts chat.Options) *chat.Controller {
	return chat.NewController(cli.repo, usr, opts, cli.logger)
}
