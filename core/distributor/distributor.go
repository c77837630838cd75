// Package distributor decides which host is responsible for a chunk or a
// metadata record. Every client and every chunk server computes the same
// answer from the path, the chunk id and the host count alone.
package distributor

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pyropy/chunkfs/core/model"
)

const (
	KindHash       = "hash"
	KindLocal      = "local"
	KindForwarding = "forwarding"
)

var (
	ErrNoHosts      = errors.New("host count must be greater than zero")
	ErrUnknownKind  = errors.New("unknown distributor kind")
	ErrHostOutOfSet = errors.New("host is outside of the host set")
)

type Distributor interface {
	LocalHost() model.Host
	HostsSize() uint32
	LocateData(path string, id model.ChunkID) model.Host
	LocateFileMetadata(path string) model.Host
	LocateDirectoryMetadata(path string) []model.Host
}

// New builds the distributor named by kind. forwardHost is only used by the
// forwarding distributor.
func New(kind string, localhost model.Host, hostsSize uint32, forwardHost model.Host) (Distributor, error) {
	if hostsSize == 0 {
		return nil, ErrNoHosts
	}

	switch kind {
	case KindHash:
		if uint32(localhost) >= hostsSize {
			return nil, fmt.Errorf("%w: localhost %d, hosts %d", ErrHostOutOfSet, localhost, hostsSize)
		}
		return NewSimpleHashDistributor(localhost, hostsSize), nil
	case KindLocal:
		return NewLocalOnlyDistributor(localhost), nil
	case KindForwarding:
		if uint32(forwardHost) >= hostsSize {
			return nil, fmt.Errorf("%w: forward host %d, hosts %d", ErrHostOutOfSet, forwardHost, hostsSize)
		}
		return NewForwarderDistributor(forwardHost, hostsSize), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// IsForwarding reports whether all data of d is staged through one host, in
// which case chunk ownership is implicit on the receiving side.
func IsForwarding(d Distributor) bool {
	_, ok := d.(*ForwarderDistributor)
	return ok
}

func hash(s string) uint64 {
	return xxhash.Sum64String(s)
}

func allHosts(hostsSize uint32) []model.Host {
	hosts := make([]model.Host, hostsSize)
	for i := range hosts {
		hosts[i] = model.Host(i)
	}

	return hosts
}

type SimpleHashDistributor struct {
	localhost model.Host
	hostsSize uint32
	allHosts  []model.Host
}

func NewSimpleHashDistributor(localhost model.Host, hostsSize uint32) *SimpleHashDistributor {
	return &SimpleHashDistributor{
		localhost: localhost,
		hostsSize: hostsSize,
		allHosts:  allHosts(hostsSize),
	}
}

func (d *SimpleHashDistributor) LocalHost() model.Host {
	return d.localhost
}

func (d *SimpleHashDistributor) HostsSize() uint32 {
	return d.hostsSize
}

// LocateData hashes the path with the decimal chunk id appended.
func (d *SimpleHashDistributor) LocateData(path string, id model.ChunkID) model.Host {
	return model.Host(hash(path+strconv.FormatUint(uint64(id), 10)) % uint64(d.hostsSize))
}

func (d *SimpleHashDistributor) LocateFileMetadata(path string) model.Host {
	return model.Host(hash(path) % uint64(d.hostsSize))
}

// LocateDirectoryMetadata returns every host, directory entries are broadcast.
func (d *SimpleHashDistributor) LocateDirectoryMetadata(_ string) []model.Host {
	hosts := make([]model.Host, len(d.allHosts))
	copy(hosts, d.allHosts)

	return hosts
}

// LocalOnlyDistributor places everything on one host.
type LocalOnlyDistributor struct {
	localhost model.Host
}

func NewLocalOnlyDistributor(localhost model.Host) *LocalOnlyDistributor {
	return &LocalOnlyDistributor{localhost: localhost}
}

func (d *LocalOnlyDistributor) LocalHost() model.Host {
	return d.localhost
}

func (d *LocalOnlyDistributor) HostsSize() uint32 {
	return 1
}

func (d *LocalOnlyDistributor) LocateData(_ string, _ model.ChunkID) model.Host {
	return d.localhost
}

func (d *LocalOnlyDistributor) LocateFileMetadata(_ string) model.Host {
	return d.localhost
}

func (d *LocalOnlyDistributor) LocateDirectoryMetadata(_ string) []model.Host {
	return []model.Host{d.localhost}
}

// ForwarderDistributor sends all data to one forwarding host while metadata
// keeps the hash placement.
type ForwarderDistributor struct {
	fwhost model.Host
	meta   *SimpleHashDistributor
}

func NewForwarderDistributor(fwhost model.Host, hostsSize uint32) *ForwarderDistributor {
	return &ForwarderDistributor{
		fwhost: fwhost,
		meta:   NewSimpleHashDistributor(fwhost, hostsSize),
	}
}

func (d *ForwarderDistributor) LocalHost() model.Host {
	return d.fwhost
}

func (d *ForwarderDistributor) HostsSize() uint32 {
	return d.meta.HostsSize()
}

func (d *ForwarderDistributor) LocateData(_ string, _ model.ChunkID) model.Host {
	return d.fwhost
}

func (d *ForwarderDistributor) LocateFileMetadata(path string) model.Host {
	return d.meta.LocateFileMetadata(path)
}

func (d *ForwarderDistributor) LocateDirectoryMetadata(path string) []model.Host {
	return d.meta.LocateDirectoryMetadata(path)
}
