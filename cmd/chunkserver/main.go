package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/chunkserver"
	"github.com/pyropy/chunkfs/lib/logger"
)

var log, _ = logger.New("chunk-server")

func main() {
	if err := run(); err != nil {
		log.Errorw("startup", "ERROR", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := chunkserver.GetConfig()
	if err != nil {
		log.Errorw("startup", "error", "config error")
		return err
	}

	store, err := chunkserver.NewChunkService(cfg.Chunks.Dir, cfg.Chunks.Size)
	if err != nil {
		log.Errorw("startup", "error", "chunk dir unusable", "dir", cfg.Chunks.Dir)
		return err
	}

	transfer := bulk.NewRPCTransferer(cfg.Bulk.MaxConns)
	defer transfer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	chunkServer, err := chunkserver.NewChunkServer(cfg, store, transfer, log, reg)
	if err != nil {
		return err
	}

	handler, err := newHandler(chunkServer, reg)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Errorw("startup", "error", "net listen failed")
		return err
	}

	listenAddr := l.Addr().String()
	httpServer := &http.Server{Handler: handler}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Serve(l)
	}()

	log.Infow("startup", "status", "chunkserver rpc server started", "address", listenAddr,
		"hostID", cfg.Hosts.ID, "hosts", cfg.Hosts.Size, "distributor", cfg.Distributor.Kind,
		"chunkSize", cfg.Chunks.Size, "chunksDir", cfg.Chunks.Dir, "ioWorkers", cfg.IO.Workers)
	defer log.Infow("shutdown", "status", "chunkserver rpc server stopped", "address", listenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start reporting chunk capacity
	go chunkServer.Start(ctx)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Infow("shutdown", "status", "chunkserver rpc server stopping", "address", listenAddr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	chunkServer.Shutdown()

	return err
}
