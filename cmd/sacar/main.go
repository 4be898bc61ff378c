package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sacarhq/sacar/pkg/config"
	"github.com/sacarhq/sacar/pkg/job"
)

var version = "unversioned"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "sacar",
		Short:        "Prepare and deploy versions of an application across a fleet of hosts",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	defineConfigFlags(root.PersistentFlags(), func(err error) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	})

	for _, role := range []string{config.RoleMaster, config.RoleSlave} {
		role := role
		root.AddCommand(&cobra.Command{
			Use:   role,
			Short: fmt.Sprintf("Run as a %s", role),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if err := cfg.IsValid(role); err != nil {
					return err
				}
				return run(role, cfg)
			},
		})
	}
	return root
}

func newLogger(format string) (log.Logger, error) {
	var logger log.Logger
	switch format {
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	case "fmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	default:
		return nil, fmt.Errorf("unsupported log format %q (one of {fmt,json})", format)
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return logger, nil
}

// daemon is what both roles have in common: background jobs, and an
// HTTP server per bind address.
type daemon struct {
	ctx        context.Context
	logger     log.Logger
	worker     *job.Worker
	shutdown   chan struct{}
	shutdownWg *sync.WaitGroup
}

func run(role string, cfg config.Config) error {
	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = log.With(logger, "role", role)
	logger.Log("version", version, "hostname", cfg.Hostname)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}
	d := &daemon{
		ctx:        ctx,
		logger:     logger,
		shutdown:   shutdown,
		shutdownWg: shutdownWg,
	}
	d.worker = job.NewWorker(job.NewQueue(shutdown, shutdownWg), &job.StatusCache{Size: cfg.JobStatusCache}, log.With(logger, "component", "worker"))
	d.worker.Start(cfg.Workers, shutdown, shutdownWg)

	storeClient, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var handler http.Handler
	switch role {
	case config.RoleMaster:
		handler, err = d.master(cfg, storeClient)
	case config.RoleSlave:
		var deregister func() error
		handler, deregister, err = d.slave(cfg, storeClient)
		if deregister != nil {
			defer func() {
				if err := deregister(); err != nil {
					logger.Log("deregister", "failed", "err", err)
				}
			}()
		}
	}
	if err != nil {
		return err
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var servers []*http.Server
	for _, addr := range cfg.Bind {
		srv := &http.Server{Addr: addr, Handler: handler}
		servers = append(servers, srv)
		go func(addr string) {
			logger.Log("addr", addr, "transport", "HTTP")
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				errc <- errors.Wrapf(err, "serving on %s", addr)
			}
		}(addr)
	}

	logger.Log("exiting", <-errc)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	for _, srv := range servers {
		srv.Shutdown(shutdownCtx)
	}
	// Abandon anything in flight; a rollout being waited on is
	// reported as failed.
	cancel()
	close(shutdown)
	shutdownWg.Wait()
	d.worker.Wait()
	return nil
}
