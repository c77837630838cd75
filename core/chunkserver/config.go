package chunkserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pyropy/chunkfs/core/distributor"
)

const EnvPrefix = "CHUNKFS"

var (
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	Server struct {
		Host string `default:"localhost"`
		Port int    `default:"4433"`
	}
	Chunks struct {
		Dir  string `default:"chunks"`
		Size uint64 `default:"524288"`
	}
	Hosts struct {
		ID   uint32
		Size uint32 `default:"1"`
	}
	Distributor struct {
		Kind        string `default:"hash"`
		ForwardHost uint32 `split_words:"true"`
	}
	IO struct {
		Workers int `default:"16"`
	}
	Scheduler struct {
		MaxRequests int64 `split_words:"true"`
	}
	Stats struct {
		Interval time.Duration `default:"10s"`
	}
	Bulk struct {
		MaxConns       int    `split_words:"true" default:"64"`
		MaxRequestSize uint64 `split_words:"true" default:"1073741824"`
	}
}

// GetConfig reads the config from CHUNKFS_* environment variables, e.g.
// CHUNKFS_SERVER_PORT, CHUNKFS_CHUNKS_DIR or CHUNKFS_DISTRIBUTOR_FORWARD_HOST.
func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process(EnvPrefix, &cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Hosts.Size == 0 {
		return fmt.Errorf("%w: host size must be greater than zero", ErrInvalidConfig)
	}

	if c.Hosts.ID >= c.Hosts.Size {
		return fmt.Errorf("%w: host id %d outside of %d hosts", ErrInvalidConfig, c.Hosts.ID, c.Hosts.Size)
	}

	if c.Chunks.Size == 0 {
		return fmt.Errorf("%w: chunk size must be greater than zero", ErrInvalidConfig)
	}

	if c.IO.Workers < 1 {
		return fmt.Errorf("%w: at least one io worker is required", ErrInvalidConfig)
	}

	if c.Bulk.MaxRequestSize == 0 {
		return fmt.Errorf("%w: max request size must be greater than zero", ErrInvalidConfig)
	}

	switch c.Distributor.Kind {
	case distributor.KindHash, distributor.KindForwarding:
	case distributor.KindLocal:
		if c.Hosts.Size != 1 {
			return fmt.Errorf("%w: local distributor serves exactly one host, got %d", ErrInvalidConfig, c.Hosts.Size)
		}
	default:
		return fmt.Errorf("%w: unknown distributor %q", ErrInvalidConfig, c.Distributor.Kind)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
