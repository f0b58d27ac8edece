// Package main serves the deposit-opening saga: the orchestration
// engine, its HTTP intake, and a BoltDB snapshot journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow"
	"github.com/meridianbank/depositflow/api"
	"github.com/meridianbank/depositflow/bank"
	"github.com/meridianbank/depositflow/deposit"
	"github.com/meridianbank/depositflow/persistence"
	"github.com/meridianbank/depositflow/persistence/boltdb"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	listen        = flag.String("listen", ":8080", "address to serve the banking API on")
	snapshotPath  = flag.String("snapshots", "", "path of the BoltDB snapshot file (in-memory when empty)")
	congratsDelay = flag.Duration("congrats-delay", deposit.DefaultCongratsDelay, "pause before congratulation messages go out")
)

// newContext returns a cancelable context that is canceled when the
// process receives a SIGTERM or SIGINT.
func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case <-sig:
			cancel()
		}
	}()

	return ctx, cancel
}

func main() {
	flag.Parse()

	ctx, cancel := newContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Println(err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context) (err error) {
	logger := &logging.StandardLogger{
		Target: log.New(os.Stderr, "", 0),
	}

	var store persistence.Store
	if *snapshotPath != "" {
		s := &boltdb.Store{File: *snapshotPath}

		openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.Open(openCtx); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, s.Close())
		}()

		store = s
	}

	repo := bank.NewStaticRepository()

	handlers := &deposit.Handlers{
		Repository: repo,
		Validator:  &bank.Validator{Repository: repo},
		Decisions:  deposit.NewTransportEvaluator(),
		Logger:     logger,
	}

	engine := depositflow.New(
		depositflow.WithDefinitions(deposit.Definitions(*congratsDelay)...),
		depositflow.WithHandlers(handlers.Registry()),
		depositflow.WithInstanceStore(store),
		depositflow.WithLogger(logger),
	)

	h := &api.Handler{
		Engine:          engine,
		Directory:       repo,
		DefaultClientID: "1",
		Logger:          logger,
	}

	server := &http.Server{
		Addr:    *listen,
		Handler: h.Router(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(ctx)
	})

	g.Go(func() error {
		logging.Log(logger, "serving banking API on %s", *listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return multierr.Append(ctx.Err(), server.Shutdown(shutdownCtx))
	})

	return g.Wait()
}
