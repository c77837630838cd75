package main

import (
	"net"
	"os"

	"github.com/pyropy/chunkfs/core/bulk"
	"github.com/pyropy/chunkfs/core/client"
	"github.com/pyropy/chunkfs/core/constants"
	"github.com/pyropy/chunkfs/core/distributor"
	"github.com/pyropy/chunkfs/core/model"
	"github.com/pyropy/chunkfs/lib/logger"
	"github.com/urfave/cli/v2"
)

var log, _ = logger.New("client")

func main() {
	app := &cli.App{
		Name:  "chunkfs",
		Usage: "read and write files on chunkfs hosts",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "hosts",
				Usage:    "Chunk server addresses, ordered by host id",
				EnvVars:  []string{"CHUNKFS_HOSTS"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Directory of the local file metadata store",
				EnvVars: []string{"CHUNKFS_STORE"},
				Value:   ".chunkfs",
			},
			&cli.StringFlag{
				Name:    "bulk-addr",
				Usage:   "Address chunk servers use to reach this client's buffers",
				EnvVars: []string{"CHUNKFS_BULK_ADDR"},
				Value:   "127.0.0.1:0",
			},
			&cli.Uint64Flag{
				Name:    "chunk-size",
				Usage:   "Chunk size in bytes, must match the chunk servers",
				EnvVars: []string{"CHUNKFS_CHUNKS_SIZE"},
				Value:   constants.CHUNK_SIZE_BYTES,
			},
			&cli.StringFlag{
				Name:    "distributor",
				Usage:   "Data placement: hash, local or forwarding",
				EnvVars: []string{"CHUNKFS_DISTRIBUTOR_KIND"},
				Value:   distributor.KindHash,
			},
			&cli.UintFlag{
				Name:    "forward-host",
				Usage:   "Host receiving all data with the forwarding distributor",
				EnvVars: []string{"CHUNKFS_DISTRIBUTOR_FORWARD_HOST"},
			},
		},
		Commands: []*cli.Command{
			writeCmd,
			readCmd,
			truncateCmd,
			rmCmd,
			statCmd,
			listCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorw("client", "ERROR", err)
		os.Exit(1)
	}
}

// newClient connects to every host and starts serving the bulk registry.
// The returned func releases everything newClient opened.
func newClient(ctx *cli.Context) (*client.Client, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	addrs := ctx.StringSlice("hosts")
	hosts := make([]client.DataServer, 0, len(addrs))
	for _, addr := range addrs {
		ds, err := client.Dial(addr)
		if err != nil {
			closeAll()
			log.Errorw("client", "error", "chunk server unreachable", "address", addr)
			return nil, nil, err
		}

		closers = append(closers, func() { _ = ds.Close() })
		hosts = append(hosts, ds)
	}

	d, err := distributor.New(ctx.String("distributor"), 0, uint32(len(hosts)), model.Host(ctx.Uint("forward-host")))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	l, err := net.Listen("tcp", ctx.String("bulk-addr"))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	closers = append(closers, func() { _ = l.Close() })

	registry := bulk.NewRegistry(l.Addr().String())
	go func() {
		if err := bulk.Serve(l, registry); err != nil {
			log.Errorw("client", "error", "bulk api failed", "err", err)
		}
	}()

	files, err := client.NewFileMetadataStore(ctx.String("store"))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	closers = append(closers, func() { _ = files.Close() })

	c, err := client.NewClient(hosts, d, ctx.Uint64("chunk-size"), registry, files, log)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	return c, closeAll, nil
}
