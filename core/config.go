package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// API backends
const (
	BackendREST  = "rest"
	BackendInMem = "inmem"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		Env          string
		AppName      string
		Build        string
		SecretKey    string
		RollbarToken string

		API struct {
			BaseURL string
			Timeout time.Duration
			Backend string // rest | inmem
		}

		Chat struct {
			ConversationPollInterval time.Duration
			MessagePollInterval      time.Duration
			SearchDebounce           time.Duration
			SearchBatchSize          int
			SessionIdleTimeout       time.Duration
		}

		Server struct {
			Host                      string
			DebugHost                 string
			ShutdownTimeout           time.Duration
			JWTExpirationDelta        time.Duration
			JWTRefreshExpirationDelta time.Duration
			AllowOrigins              []string // enables CORS when set
		}

		Session struct {
			Path string
		}
	}
)

// NewConfig loads the configuration from the environment.
// ENV selects the environment (DEV (local; default), TEST, QA, PROD) which is also the env prefix:
// e.g. `DEV_API_BASEURL=http://localhost:5000`.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	conf.Debug = v.GetBool("debug")
	conf.TestMode = v.GetBool("testMode")
	conf.Env = env
	conf.AppName = v.GetString("appName")
	conf.Build = v.GetString("build")
	conf.SecretKey = v.GetString("secretKey")
	conf.RollbarToken = v.GetString("rollbarToken")

	conf.API.BaseURL = strings.TrimRight(v.GetString("api.baseURL"), "/")
	conf.API.Timeout = v.GetDuration("api.timeout")
	conf.API.Backend = strings.ToLower(v.GetString("api.backend"))

	conf.Chat.ConversationPollInterval = v.GetDuration("chat.conversationPollInterval")
	conf.Chat.MessagePollInterval = v.GetDuration("chat.messagePollInterval")
	conf.Chat.SearchDebounce = v.GetDuration("chat.searchDebounce")
	conf.Chat.SearchBatchSize = v.GetInt("chat.searchBatchSize")
	conf.Chat.SessionIdleTimeout = v.GetDuration("chat.sessionIdleTimeout")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")
	conf.Server.AllowOrigins = v.GetStringSlice("server.allowOrigins")

	conf.Session.Path = v.GetString("session.path")
	if conf.Session.Path == "" {
		conf.Session.Path = defaultSessionPath()
	}

	if err := conf.check(); err != nil {
		return nil, err
	}
	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "HSANNU Connect")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "k7#q2w!zr0v$e9tb1x&m4n^p8s)c5d(f3g6h*j0l2")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("api.baseURL", "https://connect.hsannu.com")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.backend", BackendREST)

	v.SetDefault("chat.conversationPollInterval", 8*time.Second)
	v.SetDefault("chat.messagePollInterval", 5*time.Second)
	v.SetDefault("chat.searchDebounce", 300*time.Millisecond)
	v.SetDefault("chat.searchBatchSize", 6)
	v.SetDefault("chat.sessionIdleTimeout", 30*time.Minute)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.allowOrigins", []string{})

	v.SetDefault("session.path", "")
}

func (conf *Config) check() error {
	var flds []FieldError
	switch conf.API.Backend {
	case BackendREST:
		if conf.API.BaseURL == "" {
			flds = append(flds, FieldError{Field: "api.baseURL", Error: "required for the rest backend"})
		}
	case BackendInMem:
	default:
		flds = append(flds, FieldError{Field: "api.backend", Error: "must be one of rest, inmem"})
	}
	if conf.Chat.SearchBatchSize < 1 {
		flds = append(flds, FieldError{Field: "chat.searchBatchSize", Error: "must be at least 1"})
	}
	if len(flds) > 0 {
		return NewValidationError(errors.New("invalid configuration"), flds...)
	}
	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "hsannu-connect", "session.json")
}
