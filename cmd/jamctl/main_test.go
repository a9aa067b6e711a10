//go:build !windows

package main

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/jamctl/pkg/release"
	"github.com/cuemby/jamctl/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNode = `#!/bin/sh
trap 'exit 0' TERM
echo "testnet starting $@"
while true; do sleep 0.05; done
`

// resetFlags restores every flag to its default so commands can be executed
// repeatedly within one test binary.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

type fakeIndex struct {
	*httptest.Server
	hits int32
}

func (f *fakeIndex) downloads() int32 {
	return atomic.LoadInt32(&f.hits)
}

func toolchainTarGz(t *testing.T, prefix string) []byte {
	t.Helper()
	files := map[string]string{
		"polkajam-testnet": testNode,
		"jamt":             "#!/bin/sh\necho \"jamt $*\"\n",
		"jamtop":           "#!/bin/sh\n",
		"README.md":        "docs\n",
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     prefix + "/" + name,
			Mode:     0755,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// newFakeIndex serves a GitHub-style release index with two nightlies for
// the host platform.
func newFakeIndex(t *testing.T) *fakeIndex {
	t.Helper()
	platform, err := types.DetectPlatform()
	if err != nil {
		t.Skipf("host platform not supported: %v", err)
	}

	archives := map[string][]byte{}
	tags := []string{"nightly-2025-12-01", "nightly-2025-12-29"}
	for _, tag := range tags {
		prefix := "polkajam-" + tag + "-" + platform.String()
		archives[prefix+".tar.gz"] = toolchainTarGz(t, prefix)
	}

	idx := &fakeIndex{}
	releases := func() []release.Release {
		var out []release.Release
		for i, tag := range tags {
			name := "polkajam-" + tag + "-" + platform.String() + ".tar.gz"
			out = append(out, release.Release{
				TagName:     tag,
				PublishedAt: time.Date(2025, 12, 1+28*i, 0, 0, 0, 0, time.UTC),
				Assets: []release.Asset{{
					Name:               name,
					BrowserDownloadURL: idx.URL + "/download/" + name,
					Size:               int64(len(archives[name])),
				}},
			})
		}
		return out
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/releases", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(releases())
	})
	mux.HandleFunc("/releases/tags/", func(w http.ResponseWriter, r *http.Request) {
		tag := strings.TrimPrefix(r.URL.Path, "/releases/tags/")
		for _, rel := range releases() {
			if rel.TagName == tag {
				_ = json.NewEncoder(w).Encode(rel)
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&idx.hits, 1)
		data, ok := archives[strings.TrimPrefix(r.URL.Path, "/download/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
	idx.Server = httptest.NewServer(mux)
	t.Cleanup(idx.Close)
	return idx
}

// rpcNode is a websocket endpoint answering JSON-RPC like a ready node
func rpcNode(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func deadEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return "ws://" + addr
}

// installToolchain runs setup against a fake index and returns the home dir
func installToolchain(t *testing.T) (string, *fakeIndex) {
	t.Helper()
	idx := newFakeIndex(t)
	home := t.TempDir()
	out, err := run(t, "setup", "--home", home, "--index-url", idx.URL)
	require.NoError(t, err, out)
	return home, idx
}

func TestSetupIsIdempotent(t *testing.T) {
	home, idx := installToolchain(t)
	assert.Equal(t, int32(1), idx.downloads())

	out, err := run(t, "setup", "--home", home, "--index-url", idx.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "nightly-2025-12-29 is already installed and active")
	assert.Equal(t, int32(1), idx.downloads())

	out, err = run(t, "setup", "--list", "--home", home, "--index-url", idx.URL)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "nightly-2025-12-29")
	assert.Contains(t, lines[1], "active")

	out, err = run(t, "setup", "--info", "--output", "json", "--home", home)
	require.NoError(t, err)
	var info toolchainInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "nightly-2025-12-29", info.Version)
	assert.Equal(t, []string{"jamt", "jamtop", "polkajam-testnet"}, info.Binaries)
}

func TestSetupSwitchesToInstalledVersion(t *testing.T) {
	home, idx := installToolchain(t)

	out, err := run(t, "setup", "--version", "nightly-2025-12-01", "--home", home, "--index-url", idx.URL)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Installed nightly-2025-12-01")

	out, err = run(t, "setup", "--version", "nightly-2025-12-29", "--home", home, "--index-url", idx.URL)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Switched to nightly-2025-12-29")
	assert.Equal(t, int32(2), idx.downloads())
}

func TestSetupUnknownVersion(t *testing.T) {
	idx := newFakeIndex(t)
	_, err := run(t, "setup", "--version", "nightly-1999-01-01", "--home", t.TempDir(), "--index-url", idx.URL)
	assert.ErrorIs(t, err, types.ErrVersionNotFound)
}

func TestUpStatusDown(t *testing.T) {
	home, _ := installToolchain(t)
	node := rpcNode(t)
	t.Cleanup(func() { _, _ = run(t, "down", "--force", "--home", home) })

	out, err := run(t, "up", "--home", home, "--rpc", node, "--timeout", "5s")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Testnet ready at "+node)

	_, err = run(t, "up", "--home", home, "--rpc", node)
	require.ErrorIs(t, err, types.ErrAlreadyRunning)

	out, err = run(t, "status", "--home", home, "--output", "json")
	require.NoError(t, err)
	var view statusView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.True(t, view.Running)
	assert.True(t, view.Ready, view.Detail)
	assert.Equal(t, node, view.Endpoint)
	require.NotNil(t, view.Toolchain)
	assert.Equal(t, "nightly-2025-12-29", view.Toolchain.Version)

	out, err = run(t, "down", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "Testnet stopped")

	out, err = run(t, "down", "--home", home)
	require.NoError(t, err)
	assert.Contains(t, out, "No testnet running")

	out, err = run(t, "history", "--home", home, "--output", "json")
	require.NoError(t, err)
	var entries []types.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, types.HistoryStop, entries[0].Kind)
	assert.Equal(t, types.HistoryStart, entries[1].Kind)
	assert.Equal(t, types.HistoryInstall, entries[2].Kind)
}

func TestUpReportsReadinessTimeout(t *testing.T) {
	home, _ := installToolchain(t)
	t.Cleanup(func() { _, _ = run(t, "down", "--force", "--home", home) })

	endpoint := deadEndpoint(t)
	_, err := run(t, "up", "--home", home, "--rpc", endpoint, "--timeout", "500ms")
	require.ErrorIs(t, err, types.ErrTimedOut)
	assert.Contains(t, err.Error(), endpoint)
	assert.Contains(t, err.Error(), "still running")
}

func TestUpFailsFastWhenNodeCrashes(t *testing.T) {
	home, _ := installToolchain(t)
	node := filepath.Join(home, "toolchain", "nightly-2025-12-29", "polkajam-testnet")
	require.NoError(t, os.WriteFile(node, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0755))

	start := time.Now()
	_, err := run(t, "up", "--home", home, "--rpc", deadEndpoint(t), "--timeout", "30s")
	require.ErrorIs(t, err, types.ErrProcessExited)
	assert.Contains(t, err.Error(), filepath.Join(home, "logs", "testnet.log"))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NoFileExists(t, filepath.Join(home, "testnet.lock"))
}

func TestUpWithoutToolchain(t *testing.T) {
	_, err := run(t, "up", "--home", t.TempDir())
	assert.ErrorIs(t, err, types.ErrNotInstalled)
}

func TestDeployFailsFastWhenNetworkDown(t *testing.T) {
	home, _ := installToolchain(t)
	blob := filepath.Join(t.TempDir(), "service.jam")
	require.NoError(t, os.WriteFile(blob, []byte{0}, 0644))

	endpoint := deadEndpoint(t)
	_, err := run(t, "deploy", blob, "--home", home, "--rpc", endpoint)
	require.ErrorIs(t, err, types.ErrNetwork)
	assert.Contains(t, err.Error(), "network not reachable at "+endpoint)
}

func TestDeploy(t *testing.T) {
	home, _ := installToolchain(t)
	blob := filepath.Join(t.TempDir(), "service.jam")
	require.NoError(t, os.WriteFile(blob, []byte{0}, 0644))
	node := rpcNode(t)

	out, err := run(t, "deploy", blob, "--home", home, "--rpc", node, "-r", "svc")
	require.NoError(t, err, out)
	assert.Contains(t, out, fmt.Sprintf("jamt --rpc %s create-service %s 0", node, blob))
	assert.Contains(t, out, "Service deployed successfully")
}

func TestPrintStructured(t *testing.T) {
	v := struct {
		Tag string `json:"tag" yaml:"tag"`
	}{Tag: "nightly-2025-12-29"}

	var buf bytes.Buffer
	require.NoError(t, printStructured(&buf, "json", v))
	assert.JSONEq(t, `{"tag":"nightly-2025-12-29"}`, buf.String())

	buf.Reset()
	require.NoError(t, printStructured(&buf, "yaml", v))
	assert.YAMLEq(t, "tag: nightly-2025-12-29\n", buf.String())

	assert.Error(t, printStructured(&buf, "xml", v))
}

func TestWriteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jamctl.prom")
	viper.Set("metrics-file", path)
	defer viper.Set("metrics-file", "")

	writeMetrics()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "jamctl_")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "jamctl version "+Version)
}
