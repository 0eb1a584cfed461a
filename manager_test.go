package transit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/transit"
	"tidbyt.dev/transit/storage"
	"tidbyt.dev/transit/testutil"
)

type MockNetworkServer struct {
	Networks map[string][]byte
	Requests []string
	Server   *httptest.Server
}

func (m *MockNetworkServer) handler(w http.ResponseWriter, r *http.Request) {
	m.Requests = append(m.Requests, r.URL.Path)
	if network, found := m.Networks[r.URL.Path]; found {
		w.Write(network)
	} else {
		w.WriteHeader(http.StatusNotFound)
	}
}

func managerFixture() *MockNetworkServer {
	m := &MockNetworkServer{
		Networks: map[string][]byte{},
		Requests: []string{},
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handler))

	return m
}

func validNetwork() map[string][]string {
	return map[string][]string{
		"stop.csv": {
			"code;address;latitude;longitude",
			"1;First;-34.6080;-58.3700",
			"2;Second;-34.6090;-58.3700",
		},
		"line.csv": {
			"code;name",
			"L;Line",
		},
		"line_stop.csv": {
			"line;stop;sequence",
			"L;1;1",
			"L;2;2",
		},
		"schedule.csv": {
			"line;weekday;departure",
			"L;1;08:00",
		},
		"segment.csv": {
			"from;to;seconds;mode",
			"1;2;120;1",
		},
	}
}

func testManager(t *testing.T, backend string) (*transit.Manager, storage.Storage, *time.Time) {
	s := testutil.BuildStorage(t, backend)
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	manager := transit.NewManager(s)
	manager.TimeNow = func() time.Time { return now }

	return manager, s, &now
}

func TestManagerImportAndLoad(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			server := managerFixture()
			defer server.Server.Close()
			server.Networks["/network.zip"] = testutil.BuildZip(t, validNetwork())
			url := server.Server.URL + "/network.zip"

			manager, s, _ := testManager(t, backend)

			_, _, err := manager.Load(url)
			assert.True(t, errors.Is(err, transit.ErrNoNetwork))

			metadata, err := manager.Import(context.Background(), url, nil)
			require.NoError(t, err)
			assert.Equal(t, url, metadata.URL)
			assert.Equal(t, 64, len(metadata.Hash))
			assert.Equal(t, 2, metadata.Stops)
			assert.Equal(t, 1, metadata.Lines)
			assert.Equal(t, 1, metadata.Segments)

			networks, err := s.ListNetworks(storage.ListNetworksFilter{URL: url})
			require.NoError(t, err)
			require.Equal(t, 1, len(networks))
			assert.Equal(t, metadata.Hash, networks[0].Hash)

			network, loaded, err := manager.Load(url)
			require.NoError(t, err)
			assert.Equal(t, metadata.Hash, loaded.Hash)
			assert.Equal(t, 2, len(network.Stops))

			results, err := transit.NewPlanner(network).Search(1, 2, 1, 0)
			require.NoError(t, err)
			require.Equal(t, 1, len(results))
			assert.Equal(t, 120, results[0][0].Seconds)

			// Subsequent loads share the snapshot.
			again, _, err := manager.Load(url)
			require.NoError(t, err)
			assert.True(t, network == again)

			assert.Equal(t, []string{"/network.zip"}, server.Requests)
		})
	}
}

func TestManagerImportSameArchiveTwice(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()
	buf := testutil.BuildZip(t, validNetwork())
	server.Networks["/a.zip"] = buf
	server.Networks["/b.zip"] = buf

	manager, s, now := testManager(t, "memory")

	a, err := manager.Import(context.Background(), server.Server.URL+"/a.zip", nil)
	require.NoError(t, err)

	*now = now.Add(time.Hour)
	b, err := manager.Import(context.Background(), server.Server.URL+"/b.zip", nil)
	require.NoError(t, err)

	// Same hash, different URLs, both with the network's counts.
	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, server.Server.URL+"/b.zip", b.URL)
	assert.Equal(t, 2, b.Stops)
	assert.True(t, b.RetrievedAt.After(a.RetrievedAt))

	networks, err := s.ListNetworks(storage.ListNetworksFilter{Hash: a.Hash})
	require.NoError(t, err)
	assert.Equal(t, 2, len(networks))
	assert.Equal(t, b.URL, networks[0].URL)

	networkA, _, err := manager.Load(server.Server.URL + "/a.zip")
	require.NoError(t, err)
	networkB, _, err := manager.Load(server.Server.URL + "/b.zip")
	require.NoError(t, err)
	assert.True(t, networkA == networkB)
}

func TestManagerLoadsMostRecent(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()
	url := server.Server.URL + "/network.zip"
	server.Networks["/network.zip"] = testutil.BuildZip(t, validNetwork())

	manager, _, now := testManager(t, "memory")

	_, err := manager.Import(context.Background(), url, nil)
	require.NoError(t, err)

	// A new version of the network adds a stop.
	files := validNetwork()
	files["stop.csv"] = append(files["stop.csv"], "3;Third;-34.6100;-58.3700")
	server.Networks["/network.zip"] = testutil.BuildZip(t, files)

	*now = now.Add(time.Hour)
	_, err = manager.Import(context.Background(), url, nil)
	require.NoError(t, err)

	network, metadata, err := manager.Load(url)
	require.NoError(t, err)
	assert.Equal(t, 3, len(network.Stops))
	assert.Equal(t, 3, metadata.Stops)
}

func TestManagerRefresh(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()
	url := server.Server.URL + "/network.zip"
	server.Networks["/network.zip"] = testutil.BuildZip(t, validNetwork())

	manager, _, now := testManager(t, "memory")
	manager.RefreshInterval = time.Hour

	imported, err := manager.Refresh(context.Background(), url, nil)
	require.NoError(t, err)
	assert.True(t, imported)

	*now = now.Add(30 * time.Minute)
	imported, err = manager.Refresh(context.Background(), url, nil)
	require.NoError(t, err)
	assert.False(t, imported)
	assert.Equal(t, 1, len(server.Requests))

	*now = now.Add(31 * time.Minute)
	network, _, err := manager.RefreshAndLoad(context.Background(), url, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, len(network.Stops))
	assert.Equal(t, 2, len(server.Requests))
}

func TestManagerImportFailures(t *testing.T) {
	server := managerFixture()
	defer server.Server.Close()
	server.Networks["/garbage.zip"] = []byte("not a zip")
	broken := validNetwork()
	delete(broken, "line.csv")
	server.Networks["/broken.zip"] = testutil.BuildZip(t, broken)

	manager, s, _ := testManager(t, "memory")

	_, err := manager.Import(context.Background(), server.Server.URL+"/missing.zip", nil)
	assert.Error(t, err)

	_, err = manager.Import(context.Background(), server.Server.URL+"/garbage.zip", nil)
	assert.Error(t, err)

	_, err = manager.Import(context.Background(), server.Server.URL+"/broken.zip", nil)
	assert.Error(t, err)

	networks, err := s.ListNetworks(storage.ListNetworksFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, len(networks))

	// Too large
	server.Networks["/network.zip"] = testutil.BuildZip(t, validNetwork())
	manager.MaxSize = 10
	_, err = manager.Import(context.Background(), server.Server.URL+"/network.zip", nil)
	assert.Error(t, err)
}

func TestManagerImportFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.zip")
	require.NoError(t, os.WriteFile(path, testutil.BuildZip(t, validNetwork()), 0644))

	manager, _, _ := testManager(t, "sqlite")
	manager.WalkRadius = 150

	_, err := manager.Import(context.Background(), path, nil)
	require.NoError(t, err)

	network, _, err := manager.Load(path)
	require.NoError(t, err)

	// The stops are 111m apart. 1 -> 2 is already a BUS segment,
	// so only 2 -> 1 gets generated, and walking works both ways.
	assert.Equal(t, 2, len(network.Segments))
	require.Equal(t, 1, len(network.WalksFrom(1)))
	assert.Equal(t, 93, network.WalksFrom(1)[0].Seconds)
	assert.Equal(t, 1, len(network.WalksFrom(2)))
}

func writeNetworkDirectory(t *testing.T, dir string, files map[string][]string) {
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(content, "\n")), 0644)
		require.NoError(t, err)
	}
}

func TestManagerImportFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeNetworkDirectory(t, dir, validNetwork())

	manager, _, now := testManager(t, "memory")

	first, err := manager.Import(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, first.URL)
	assert.Equal(t, 64, len(first.Hash))
	assert.Equal(t, 2, first.Stops)
	assert.Equal(t, 1, first.Lines)

	network, _, err := manager.Load(dir)
	require.NoError(t, err)
	results, err := transit.NewPlanner(network).Search(1, 2, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, len(results))

	// Unchanged files hash the same, also via file://.
	*now = now.Add(time.Hour)
	again, err := manager.Import(context.Background(), "file://"+dir, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Hash, again.Hash)

	// An added stop changes the hash.
	files := validNetwork()
	files["stop.csv"] = append(files["stop.csv"], "3;Third;-34.6100;-58.3700")
	writeNetworkDirectory(t, dir, files)

	*now = now.Add(time.Hour)
	changed, err := manager.Import(context.Background(), dir, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, changed.Hash)
	assert.Equal(t, 3, changed.Stops)

	// Directories must hold the required files.
	empty := t.TempDir()
	_, err = manager.Import(context.Background(), empty, nil)
	assert.Error(t, err)
}
