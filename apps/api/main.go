package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/hsannu/connect/apps/api/echo"
	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
	"github.com/hsannu/connect/core/user"
	logsvc "github.com/hsannu/connect/services/logger"
	metricsvc "github.com/hsannu/connect/services/metrics"
	"github.com/hsannu/connect/storage/inmem"
	"github.com/hsannu/connect/storage/restapi"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	apiLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "PORTAL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	apiLogger.Enable(!conf.Debug)

	// set up the portal backend
	auth, repo, err := setUpBackend(conf, apiLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up backend: %v", err), err)
	}

	// set up services
	recorder := metricsvc.NewRecorder()
	usrSvc := user.NewService(auth, nil)

	chatOpts := chat.NewOptions(conf)
	chatOpts.Recorder = recorder
	hub := echoapi.NewHub(repo, echoapi.HubOptions{
		Chat:        chatOpts,
		IdleTimeout: conf.Chat.SessionIdleTimeout,
		OnCount:     recorder.SetControllers,
	}, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus scrape endpoint.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("backend").Set(conf.API.Backend)
	http.Handle("/metrics", recorder.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			UserSvc:    usrSvc,
			Hub:        hub,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		hub.Close()
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpBackend returns the portal API adapters, or their in-memory stand-ins seeded with demo data.
func setUpBackend(conf *core.Config, logger core.Logger) (user.Authenticator, chat.Repository, error) {
	switch conf.API.Backend {
	case core.BackendInMem:
		db := inmem.Open()
		if err := inmem.Seed(db); err != nil {
			return nil, nil, err
		}
		logger.Info(fmt.Sprintf("using the in-memory backend; demo password %q", inmem.DemoPassword))
		return inmem.NewAuthenticator(db), inmem.NewChatRepository(db), nil
	default:
		client := restapi.NewClient(conf, logger)
		return restapi.NewAuthenticator(client), restapi.NewChatRepository(client), nil
	}
}
