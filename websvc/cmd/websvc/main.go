package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	authinmem "github.com/ichigozero/todokit/authsvc/inmem"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	taskclient "github.com/ichigozero/todokit/tasksvc/client"
	"github.com/ichigozero/todokit/tasksvc/inmem"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/todokit/usersvc"
	usergorm "github.com/ichigozero/todokit/usersvc/db/gorm"
	userinmem "github.com/ichigozero/todokit/usersvc/inmem"
	"github.com/ichigozero/todokit/usersvc/pkg/userservice"
	"github.com/ichigozero/todokit/websvc/pkg/webtransport"
	"github.com/ichigozero/todokit/websvc/session"
	"github.com/ichigozero/todokit/websvc/taskstore"
	"github.com/oklog/oklog/pkg/group"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
)

func main() {
	fs := flag.NewFlagSet("websvc", flag.ExitOnError)
	var (
		httpAddr = fs.String(
			"http.addr",
			getEnv("HTTP_ADDR", ":8080"),
			"HTTP listen address",
		)
		publicURL = fs.String(
			"public.url",
			getEnv("PUBLIC_URL", "http://localhost:8080"),
			"URL browsers reach this server at, used for the OAuth callback",
		)
		consulAddr = fs.String(
			"consul.addr",
			getEnv("CONSUL_ADDR", ""),
			"Consul agent address; discovers tasksvc and shares the token registry",
		)
		tasksvcAddr = fs.String(
			"tasksvc.addr",
			getEnv("TASKSVC_ADDR", ""),
			"tasksvc instance URL; skips discovery",
		)
		accountStore = fs.String(
			"accounts.store",
			getEnv("ACCOUNT_STORE", "gorm"),
			"account store backend: gorm or memory",
		)
		databaseURL = fs.String(
			"database.url",
			getEnv("DATABASE_URL", ""),
			"Postgres URL for the gorm account store; SQLite file accounts.db when empty",
		)
		sessionIdle = fs.Duration(
			"session.idle",
			getEnvAsDuration("SESSION_IDLE_TIMEOUT", session.DefaultIdleTimeout),
			"evict browser sessions unused for this long",
		)
		googleClientID = fs.String(
			"google.client-id",
			getEnv("GOOGLE_CLIENT_ID", ""),
			"Google OAuth client ID",
		)
		googleClientSecret = fs.String(
			"google.client-secret",
			getEnv("GOOGLE_CLIENT_SECRET", ""),
			"Google OAuth client secret",
		)
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	remote := *consulAddr != "" || *tasksvcAddr != ""

	var (
		apiclient   consulsd.Client
		inmemClient authinmem.Client
	)
	if remote {
		consulConfig := api.DefaultConfig()
		if len(*consulAddr) > 0 {
			consulConfig.Address = *consulAddr
		}
		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		apiclient = consulsd.NewClient(consulClient)
		inmemClient = authinmem.NewClient(consulClient)
	} else {
		inmemClient = authinmem.NewMemoryClient()
	}

	authEndpoints := authendpoint.New(
		authservice.New(authservice.NewTokenizer(), inmemClient, logger),
		logger,
	)

	var tasks taskservice.Service
	switch {
	case *tasksvcAddr != "":
		endpoints, err := tasktransport.NewHTTPClient(*tasksvcAddr, logger)
		if err != nil {
			logger.Log("tasksvc", *tasksvcAddr, "err", err)
			os.Exit(1)
		}
		tasks = endpoints
		logger.Log("tasks", "direct", "addr", *tasksvcAddr)

	case remote:
		endpoints, err := taskclient.New(apiclient, logger)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		tasks = endpoints
		logger.Log("tasks", "consul")

	default:
		tasks = taskservice.New(inmem.NewTaskRepository(), logger)
		tasks = taskservice.ProxingMiddleware(authEndpoints.ValidateEndpoint)(tasks)
		logger.Log("tasks", "in-process")
	}

	var accounts userservice.Service
	{
		users, err := openAccounts(*accountStore, *databaseURL)
		if err != nil {
			logger.Log("accounts", *accountStore, "during", "Open", "err", err)
			os.Exit(1)
		}
		accounts = userservice.New(users, logger)
	}

	if *googleClientID == "" || *googleClientSecret == "" {
		level.Warn(logger).Log("msg", "Google OAuth client is not configured; sign-in will fail")
	}
	webtransport.UseGoogle(*publicURL, *googleClientID, *googleClientSecret)

	var (
		store       = taskstore.New(tasks)
		registry    = session.NewRegistry(store, *sessionIdle)
		httpHandler = webtransport.NewHTTPHandler(
			registry,
			store,
			authEndpoints,
			accounts,
			webtransport.NewGothProvider(),
			logger,
		)
	)

	var g group.Group
	{
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", *httpAddr)
			return http.Serve(httpListener, httpHandler)
		}, func(error) {
			httpListener.Close()
		})
	}
	{
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

func openAccounts(kind, databaseURL string) (usersvc.UserRepository, error) {
	switch kind {
	case "gorm":
		var (
			db  *libgorm.DB
			err error
		)
		if databaseURL != "" {
			db, err = libgorm.Open(postgres.Open(databaseURL), &libgorm.Config{})
		} else {
			db, err = libgorm.Open(sqlite.Open("accounts.db"), &libgorm.Config{})
		}
		if err != nil {
			return nil, err
		}
		if err := usergorm.AutoMigrate(db); err != nil {
			return nil, err
		}
		return usergorm.NewUserRepository(db), nil

	case "memory":
		return userinmem.NewUserRepository(), nil
	}
	return nil, fmt.Errorf("unknown account store %q", kind)
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	if v, err := time.ParseDuration(value); err == nil {
		return v
	}
	return fallback
}
