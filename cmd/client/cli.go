package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var writeCmd = &cli.Command{
	Name:  "write",
	Usage: "Write a local file to chunkfs",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "file-path",
			Required: true,
			Usage:    "Path to file you want to write to chunkfs",
		},
		&cli.StringFlag{
			Name:     "dfs-path",
			Required: true,
			Usage:    "Path where you want to store your file on chunkfs",
		},
		&cli.Uint64Flag{
			Name:  "offset",
			Usage: "Offset inside the chunkfs file",
		},
	},
	Action: func(ctx *cli.Context) error {
		filePath := ctx.String("file-path")
		dfsPath := ctx.String("dfs-path")
		offset := ctx.Uint64("offset")

		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		content, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		bw, err := c.WriteFile(ctx.Context, dfsPath, content, offset)
		if err != nil {
			return err
		}

		log.Infow("write", "path", dfsPath, "bytesWritten", bw, "offset", offset)
		return nil
	},
}

var readCmd = &cli.Command{
	Name:  "read",
	Usage: "Read a chunkfs file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "dfs-path",
			Required: true,
			Usage:    "Path of the file on chunkfs",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "Local file to write to, stdout if empty",
		},
		&cli.Uint64Flag{
			Name:  "offset",
			Usage: "Offset inside the chunkfs file",
		},
		&cli.Uint64Flag{
			Name:  "length",
			Usage: "Number of bytes to read, the rest of the file if zero",
		},
	},
	Action: func(ctx *cli.Context) error {
		dfsPath := ctx.String("dfs-path")
		offset := ctx.Uint64("offset")

		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		length := ctx.Uint64("length")
		if length == 0 {
			file, err := c.Get(ctx.Context, dfsPath)
			if err != nil {
				return err
			}

			if file.Size > offset {
				length = file.Size - offset
			}
		}

		buf := make([]byte, length)
		n, err := c.ReadFile(ctx.Context, dfsPath, buf, offset)
		if err != nil {
			return err
		}

		out := os.Stdout
		if p := ctx.String("out"); p != "" {
			out, err = os.Create(p)
			if err != nil {
				return err
			}
			defer out.Close()
		}

		_, err = out.Write(buf[:n])
		return err
	},
}

var truncateCmd = &cli.Command{
	Name:  "truncate",
	Usage: "Truncate a chunkfs file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "dfs-path",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "length",
			Required: true,
		},
	},
	Action: func(ctx *cli.Context) error {
		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		return c.Truncate(ctx.Context, ctx.String("dfs-path"), ctx.Uint64("length"))
	},
}

var rmCmd = &cli.Command{
	Name:  "rm",
	Usage: "Remove a chunkfs file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "dfs-path",
			Required: true,
		},
	},
	Action: func(ctx *cli.Context) error {
		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		return c.Remove(ctx.Context, ctx.String("dfs-path"))
	},
}

var statCmd = &cli.Command{
	Name:  "stat",
	Usage: "Show chunk capacity of all hosts",
	Action: func(ctx *cli.Context) error {
		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		stat, err := c.ChunkStat(ctx.Context)
		if err != nil {
			return err
		}

		fmt.Printf("chunk size: %d\nchunks total: %d\nchunks free: %d\n", stat.ChunkSize, stat.ChunkTotal, stat.ChunkFree)
		return nil
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "List all files",
	Action: func(ctx *cli.Context) error {
		c, closeClient, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer closeClient()

		files, err := c.FileMetadataStore.All(ctx.Context)
		if err != nil {
			return err
		}

		for _, file := range files {
			fmt.Println(file.Path, file.Size, file.ID)
		}

		return nil
	},
}
