//go:build !windows

package jamt

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/jamctl/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node answers every JSON-RPC request with an empty result
func node(t *testing.T) string {
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

// toolchain writes fake jamt and jamtop scripts that echo their arguments
func toolchain(t *testing.T, jamtExit int) *types.InstallRecord {
	t.Helper()
	dir := t.TempDir()
	jamt := "#!/bin/sh\necho \"jamt $*\"\necho \"rejected\" >&2\nexit " + strconv.Itoa(jamtExit) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, CLIBinary), []byte(jamt), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MonitorBinary), []byte("#!/bin/sh\necho \"jamtop $*\"\n"), 0755))
	return &types.InstallRecord{Version: "nightly-2025-12-29", Platform: "linux-x86_64", Path: dir}
}

func blob(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte{0x01}, 0644))
	return path
}

func TestDeployArgs(t *testing.T) {
	args := deployArgs(DeployOptions{RPC: "ws://localhost:19800", Blob: "svc.jam"})
	assert.Equal(t, []string{
		"--rpc", "ws://localhost:19800", "create-service", "svc.jam", "0",
		"--min-item-gas", DefaultGas, "--min-memo-gas", DefaultGas,
	}, args)

	args = deployArgs(DeployOptions{
		RPC: "ws://x:1", Blob: "svc.jam", Amount: "100", Memo: "hello",
		MinItemGas: "5", MinMemoGas: "6", Register: "svc",
	})
	assert.Equal(t, []string{
		"--rpc", "ws://x:1", "create-service", "svc.jam", "100", "hello",
		"--min-item-gas", "5", "--min-memo-gas", "6", "--register", "svc",
	}, args)
}

func TestCreateService(t *testing.T) {
	c := NewClient(toolchain(t, 0))
	rpc := node(t)
	path := blob(t, "svc.jam")

	out, err := c.CreateService(context.Background(), DeployOptions{RPC: rpc, Blob: path, Register: "svc"})
	require.NoError(t, err)
	assert.Contains(t, out, "jamt --rpc "+rpc+" create-service "+path+" 0")
	assert.Contains(t, out, "--register svc")
}

func TestCreateServiceFailureIncludesStderr(t *testing.T) {
	c := NewClient(toolchain(t, 1))

	_, err := c.CreateService(context.Background(), DeployOptions{RPC: node(t), Blob: blob(t, "svc.jam")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestCreateServiceValidatesBlob(t *testing.T) {
	c := NewClient(toolchain(t, 0))
	rpc := node(t)

	_, err := c.CreateService(context.Background(), DeployOptions{RPC: rpc, Blob: "/nonexistent/svc.jam"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = c.CreateService(context.Background(), DeployOptions{RPC: rpc, Blob: blob(t, "svc.wasm")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a .jam file")
}

func TestCreateServiceFailsFastWhenNetworkDown(t *testing.T) {
	c := NewClient(toolchain(t, 0))
	c.PingTimeout = time.Second
	endpoint := deadEndpoint(t)

	start := time.Now()
	_, err := c.CreateService(context.Background(), DeployOptions{RPC: endpoint, Blob: blob(t, "svc.jam")})
	require.ErrorIs(t, err, types.ErrNetwork)
	assert.Contains(t, err.Error(), "network not reachable at "+endpoint)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestCreateServiceWithoutToolchain(t *testing.T) {
	c := NewClient(nil)
	_, err := c.CreateService(context.Background(), DeployOptions{RPC: node(t), Blob: blob(t, "svc.jam")})
	assert.ErrorIs(t, err, types.ErrNotInstalled)
}

func TestMonitor(t *testing.T) {
	c := NewClient(toolchain(t, 0))
	var out bytes.Buffer
	c.Stdin = strings.NewReader("")
	c.Stdout = &out

	rpc := node(t)
	require.NoError(t, c.Monitor(context.Background(), rpc))
	assert.Equal(t, "jamtop --rpc "+rpc+"\n", out.String())

	err := c.Monitor(context.Background(), deadEndpoint(t))
	assert.ErrorIs(t, err, types.ErrNetwork)
}

func TestMonitorIsInterruptedNotKilled(t *testing.T) {
	rec := toolchain(t, 0)
	script := "#!/bin/sh\ntrap 'echo \"terminal restored\"; exit 0' INT\necho started\nwhile true; do sleep 0.05; done\n"
	require.NoError(t, os.WriteFile(filepath.Join(rec.Path, MonitorBinary), []byte(script), 0755))

	c := NewClient(rec)
	var out syncBuffer
	c.Stdin = strings.NewReader("")
	c.Stdout = &out

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for i := 0; i < 200 && !strings.Contains(out.String(), "started"); i++ {
			time.Sleep(10 * time.Millisecond)
		}
		cancel()
	}()

	start := time.Now()
	require.NoError(t, c.Monitor(ctx, node(t)))
	assert.Contains(t, out.String(), "terminal restored")
	assert.Less(t, time.Since(start), monitorWaitDelay)
}

// syncBuffer is a bytes.Buffer safe for concurrent reads and writes
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
