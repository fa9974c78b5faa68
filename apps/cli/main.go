package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
	logsvc "github.com/hsannu/connect/services/logger"
	"github.com/hsannu/connect/storage/inmem"
	"github.com/hsannu/connect/storage/restapi"
	"github.com/hsannu/connect/storage/session"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "CONNECT : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	auth, repo, err := setUpBackend(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up backend: %v", err), err)
	}
	validate, _ := core.NewValidator()

	cli := &commandLine{
		usrSvc:   user.NewService(auth, session.NewFileStore(conf.Session.Path)),
		repo:     repo,
		chatOpts: chat.NewOptions(conf),
		logger:   logger,
		validate: validate,
		out:      os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cli.run(ctx, os.Args[1:])
	stop()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		os.Exit(1)
	}
}

// setUpBackend returns the portal API adapters. The in-memory backend is seeded on every run.
func setUpBackend(conf *core.Config, logger core.Logger) (user.Authenticator, chat.Repository, error) {
	if conf.API.Backend == core.BackendInMem {
		db := inmem.Open()
		if err := inmem.Seed(db); err != nil {
			return nil, nil, err
		}
		return inmem.NewAuthenticator(db), inmem.NewChatRepository(db), nil
	}
	client := restapi.NewClient(conf, logger)
	return restapi.NewAuthenticator(client), restapi.NewChatRepository(client), nil
}
