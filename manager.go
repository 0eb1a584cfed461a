package transit

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"tidbyt.dev/transit/downloader"
	"tidbyt.dev/transit/metrics"
	"tidbyt.dev/transit/model"
	"tidbyt.dev/transit/parse"
	"tidbyt.dev/transit/storage"
)

const (
	DefaultRefreshInterval = 12 * time.Hour
	DefaultTimeout         = 60 * time.Second
	DefaultMaxSize         = 200 << 20 // 200 MB
)

var ErrNoNetwork = errors.New("no network found")

// Manager keeps network archives imported into storage, and the
// assembled snapshots of them in memory.
type Manager struct {
	Timeout         time.Duration
	MaxSize         int
	RefreshInterval time.Duration

	// If positive, downloads are cached in memory for this long.
	CacheTTL time.Duration

	// Walk segment generation, see LoadOptions.
	WalkRadius float64
	WalkSpeed  float64

	Downloader downloader.Downloader
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	storage storage.Storage

	mutex    sync.RWMutex
	networks map[string]*model.Network
	TimeNow  func() time.Time
}

// Creates a new Manager of network data, on top of the given storage.
func NewManager(s storage.Storage) *Manager {
	return &Manager{
		Timeout:         DefaultTimeout,
		MaxSize:         DefaultMaxSize,
		RefreshInterval: DefaultRefreshInterval,
		WalkSpeed:       DefaultWalkSpeed,

		Downloader: downloader.NewMemoryDownloader(),
		Logger:     slog.Default(),
		TimeNow:    time.Now,

		storage:  s,
		networks: map[string]*model.Network{},
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Fetches the archive at url and imports it into storage. A local
// directory holding the network files is imported as is.
//
// Archives are identified by their SHA256. If the same archive is
// already stored, it is not parsed again, but its metadata record for
// url is refreshed so it becomes the most recent one for url.
func (m *Manager) Import(
	ctx context.Context,
	url string,
	headers map[string]string,
) (*storage.NetworkMetadata, error) {
	var hash string
	var parseInto func(storage.NetworkWriter) (*storage.NetworkMetadata, error)

	if dir, ok := localDirectory(url); ok {
		var err error
		hash, err = parse.HashDirectory(dir)
		if err != nil {
			return nil, fmt.Errorf("hashing network at %s: %w", dir, err)
		}
		parseInto = func(w storage.NetworkWriter) (*storage.NetworkMetadata, error) {
			return parse.ParseDirectory(w, dir)
		}
	} else {
		body, err := m.Downloader.Get(
			ctx,
			url,
			headers,
			downloader.GetOptions{
				Cache:    m.CacheTTL > 0,
				CacheTTL: m.CacheTTL,
				Timeout:  m.Timeout,
				MaxSize:  m.MaxSize,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("downloading network at %s: %w", url, err)
		}
		hash = fmt.Sprintf("%x", sha256.Sum256(body))
		parseInto = func(w storage.NetworkWriter) (*storage.NetworkMetadata, error) {
			return parse.ParseNetwork(w, body)
		}
	}

	logger := m.logger().With(slog.String("url", url), slog.String("hash", hash))

	// The data we just downloaded may already exist in storage.
	existing, err := m.storage.ListNetworks(storage.ListNetworksFilter{Hash: hash})
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}

	var metadata *storage.NetworkMetadata
	if len(existing) > 0 {
		// Reuse counts from the stored copy, possibly
		// recorded under another URL.
		md := *existing[0]
		metadata = &md
		logger.Info("network already stored")
	} else {
		writer, err := m.storage.GetWriter(hash)
		if err != nil {
			return nil, fmt.Errorf("getting writer: %w", err)
		}

		metadata, err = parseInto(writer)
		if err != nil {
			return nil, fmt.Errorf("parsing: %w", err)
		}

		logger.Info(
			"network imported",
			slog.Int("stops", metadata.Stops),
			slog.Int("lines", metadata.Lines),
			slog.Int("segments", metadata.Segments),
		)
	}

	metadata.Hash = hash
	metadata.URL = url
	metadata.RetrievedAt = m.TimeNow().UTC()

	err = m.storage.WriteNetworkMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	return metadata, nil
}

// Imports url unless a network was retrieved from it within
// RefreshInterval. Reports whether an import took place.
func (m *Manager) Refresh(
	ctx context.Context,
	url string,
	headers map[string]string,
) (bool, error) {
	networks, err := m.storage.ListNetworks(storage.ListNetworksFilter{URL: url})
	if err != nil {
		return false, fmt.Errorf("listing networks: %w", err)
	}

	if len(networks) > 0 && networks[0].RetrievedAt.After(m.TimeNow().Add(-m.RefreshInterval)) {
		return false, nil
	}

	_, err = m.Import(ctx, url, headers)
	if err != nil {
		return false, err
	}

	return true, nil
}

// Returns the network most recently retrieved from url, or
// ErrNoNetwork. Assembled networks are cached by hash, so callers
// sharing an archive share the snapshot.
func (m *Manager) Load(url string) (*model.Network, *storage.NetworkMetadata, error) {
	networks, err := m.storage.ListNetworks(storage.ListNetworksFilter{URL: url})
	if err != nil {
		return nil, nil, fmt.Errorf("listing networks: %w", err)
	}
	if len(networks) == 0 {
		return nil, nil, ErrNoNetwork
	}
	metadata := networks[0]

	m.mutex.RLock()
	network, found := m.networks[metadata.Hash]
	m.mutex.RUnlock()
	if found {
		return network, metadata, nil
	}

	reader, err := m.storage.GetReader(metadata.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("getting reader: %w", err)
	}

	network, err = LoadNetwork(reader, LoadOptions{
		Logger:     m.logger().With(slog.String("hash", metadata.Hash)),
		Metrics:    m.Metrics,
		WalkRadius: m.WalkRadius,
		WalkSpeed:  m.WalkSpeed,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading network %s: %w", metadata.Hash, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Another caller may have won the race. Keep theirs.
	if existing, found := m.networks[metadata.Hash]; found {
		return existing, metadata, nil
	}
	m.networks[metadata.Hash] = network

	return network, metadata, nil
}

// Plain paths and file:// URLs pointing at a directory.
func localDirectory(url string) (string, bool) {
	path := strings.TrimPrefix(url, "file://")
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}

// Refreshes url as needed, then loads its most recent network.
func (m *Manager) RefreshAndLoad(
	ctx context.Context,
	url string,
	headers map[string]string,
) (*model.Network, *storage.NetworkMetadata, error) {
	_, err := m.Refresh(ctx, url, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("refreshing: %w", err)
	}
	return m.Load(url)
}
