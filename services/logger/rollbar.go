package logsvc

import (
	"context"
	"io"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/user"
)

type RollbarLogger struct {
	std    *log.Logger
	debug  bool // print Debug messages
	report bool // forward to Rollbar
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug, report: true}
}

// NewStdLogger returns a logger that only writes to w (CLI and tests).
func NewStdLogger(w io.Writer, debug bool) *RollbarLogger {
	return &RollbarLogger{std: log.New(w, "", log.LstdFlags), debug: debug}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, usr *user.User) {
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if u, ok := arg.(user.User); ok {
			if usr == nil { // only set one User
				usr = &u
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
	}
	return rbArgs, usr
}

// personContext carries the reported person per item; the client's own person is process-global.
func personContext(usr *user.User) context.Context {
	ctx := context.Background()
	if usr != nil && usr.Resolvable() {
		ctx = rollbar.NewPersonContext(ctx, &rollbar.Person{
			Id:       strconv.Itoa(usr.ID),
			Username: usr.Username,
			Email:    usr.Email,
		})
	}
	return ctx
}

func (l RollbarLogger) send(level string, rbArgs []interface{}, usr *user.User) {
	if !l.report {
		return
	}
	items := make([]interface{}, 0, len(rbArgs)+1)
	items = append(items, rbArgs...)
	rollbar.Log(level, append(items, personContext(usr))...)
}

func (l RollbarLogger) print(level, msg string, args []interface{}, usr *user.User) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args[1:] {
		l.std.Printf("%+v\n", arg)
	}
	if usr != nil {
		l.std.Printf("user: %d (%s)\n", usr.ID, usr.Username)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	rbArgs, usr := l.prepare(msg, args)
	l.send(rollbar.DEBUG, rbArgs, usr)
	l.print("DEBUG", msg, rbArgs, usr)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, usr := l.prepare(msg, args)
	l.send(rollbar.INFO, rbArgs, usr)
	l.print("INFO", msg, rbArgs, usr)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, usr := l.prepare(msg, args)
	l.send(rollbar.WARN, rbArgs, usr)
	l.print("WARN", msg, rbArgs, usr)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, usr := l.prepare(msg, args)
	l.send(rollbar.ERR, rbArgs, usr)
	l.print("ERROR", msg, rbArgs, usr)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, usr := l.prepare(msg, args)
	l.send(rollbar.CRIT, rbArgs, usr)
	if l.report {
		rollbar.Wait()
	}
	l.print("FATAL", msg, rbArgs, usr)
	l.std.Fatal(msg)
}
