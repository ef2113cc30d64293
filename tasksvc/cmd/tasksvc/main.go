package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	authinmem "github.com/ichigozero/todokit/authsvc/inmem"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/authsvc/pkg/authservice"
	"github.com/ichigozero/todokit/tasksvc"
	taskclient "github.com/ichigozero/todokit/tasksvc/client"
	"github.com/ichigozero/todokit/tasksvc/db/gorm"
	"github.com/ichigozero/todokit/tasksvc/db/mongo"
	"github.com/ichigozero/todokit/tasksvc/inmem"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/twinj/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
)

func main() {
	fs := flag.NewFlagSet("tasksvc", flag.ExitOnError)
	var (
		httpAddr = fs.String(
			"http.addr",
			getEnv("HTTP_ADDR", ":8082"),
			"HTTP listen address",
		)
		consulAddr = fs.String(
			"consul.addr",
			getEnv("CONSUL_ADDR", ""),
			"Consul agent address",
		)
		store = fs.String(
			"store",
			getEnv("TASK_STORE", "gorm"),
			"task store backend: gorm, mongo or memory",
		)
		databaseURL = fs.String(
			"database.url",
			getEnv("DATABASE_URL", ""),
			"Postgres URL for the gorm store; SQLite file tasks.db when empty",
		)
		mongoURI = fs.String(
			"mongo.uri",
			getEnv("MONGO_URI", "mongodb://localhost:27017"),
			"MongoDB connection URI",
		)
		mongoDatabase = fs.String(
			"mongo.db",
			getEnv("MONGO_DB", "todokit"),
			"MongoDB database name",
		)
		connectTimeout = fs.Duration(
			"connect.timeout",
			getEnvAsDuration("CONNECT_TIMEOUT", 10*time.Second),
			"timeout for connecting to the task store",
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

	var taskRepository tasksvc.TaskRepository
	{
		ctx, cancel := context.WithTimeout(context.Background(), *connectTimeout)
		defer cancel()

		var err error
		taskRepository, err = openStore(ctx, *store, *databaseURL, *mongoURI, *mongoDatabase)
		if err != nil {
			logger.Log("store", *store, "during", "Open", "err", err)
			os.Exit(1)
		}
		logger.Log("store", *store)
	}

	var (
		registrar   *consulsd.Registrar
		inmemClient authinmem.Client
	)
	{
		consulConfig := api.DefaultConfig()
		if len(*consulAddr) > 0 {
			consulConfig.Address = *consulAddr
		}
		consulClient, err := api.NewClient(consulConfig)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}

		host, port, err := net.SplitHostPort(*httpAddr)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		if host == "" {
			host = "localhost"
		}

		p, _ := strconv.Atoi(port)
		asr := &api.AgentServiceRegistration{
			ID:      uuid.NewV4().String(),
			Name:    taskclient.ServiceName,
			Address: host,
			Port:    p,
		}

		registrar = consulsd.NewRegistrar(consulsd.NewClient(consulClient), asr, logger)
		registrar.Register()
		defer registrar.Deregister()

		inmemClient = authinmem.NewClient(consulClient)
	}

	authEndpoints := authendpoint.New(
		authservice.New(authservice.NewTokenizer(), inmemClient, logger),
		logger,
	)

	fieldKeys := []string{"method"}

	var service taskservice.Service
	{
		service = taskservice.New(taskRepository, logger)
		service = taskservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_latency_microseconds",
				Help:      "Total duration of requests in microseconds.",
			}, fieldKeys),
		)(service)
		service = taskservice.ProxingMiddleware(authEndpoints.ValidateEndpoint)(service)
	}

	var (
		endpoints   = taskendpoint.New(service, logger)
		httpHandler = tasktransport.NewHTTPHandler(endpoints, logger)
	)

	var g group.Group
	{
		// The HTTP listener mounts the Go kit HTTP handler we created.
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			registrar.Deregister()
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
		// This function just sits and waits for ctrl-C.
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

func openStore(ctx context.Context, kind, databaseURL, mongoURI, mongoDatabase string) (tasksvc.TaskRepository, error) {
	switch kind {
	case "gorm":
		var (
			db  *libgorm.DB
			err error
		)
		if databaseURL != "" {
			db, err = libgorm.Open(postgres.Open(databaseURL), &libgorm.Config{})
		} else {
			db, err = libgorm.Open(sqlite.Open("tasks.db"), &libgorm.Config{})
		}
		if err != nil {
			return nil, err
		}
		if err := gorm.AutoMigrate(db); err != nil {
			return nil, err
		}
		return gorm.NewTaskRepository(db), nil

	case "mongo":
		client, err := mongo.Connect(ctx, mongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(mongoDatabase)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		return mongo.NewTaskRepository(db), nil

	case "memory":
		return inmem.NewTaskRepository(), nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
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
