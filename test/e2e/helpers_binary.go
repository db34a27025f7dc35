//go:build e2e

package e2e

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// holoceneServer manages a running holocene server process.
type holoceneServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	apiKey  string
	logFile string
}

// startHolocene launches the binary on a fresh data directory and waits for
// it to become healthy. The server is configured entirely via environment
// variables.
func startHolocene(t *testing.T) *holoceneServer {
	t.Helper()

	if holoceneBin == "" {
		t.Skip("holocene binary not available (set HOLOCENE_BIN or add to PATH)")
	}
	return launch(t, t.TempDir(), "e2e-test-api-key", "holocene.log")
}

// restartOnSameData stops the server and starts a new one using the same data directory.
func (s *holoceneServer) restartOnSameData(t *testing.T) *holoceneServer {
	t.Helper()

	s.stop()
	time.Sleep(200 * time.Millisecond) // allow port release

	return launch(t, s.dataDir, s.apiKey, "holocene-restart.log")
}

func launch(t *testing.T, dataDir, apiKey, logName string) *holoceneServer {
	t.Helper()

	port := freePort(t)
	logFile := filepath.Join(dataDir, logName)

	cmd := exec.Command(holoceneBin)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("HOLOCENE_PORT=%d", port),
		"HOLOCENE_DB_PATH="+filepath.Join(dataDir, "holocene.db"),
		"HOLOCENE_API_KEY="+apiKey,
		"HOLOCENE_SNAPSHOT_DIR="+filepath.Join(dataDir, "snapshots"),
		"HOLOCENE_SNAPSHOT_INTERVAL=1h",
		"HOLOCENE_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"), // skip YAML file
	)

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start holocene: %v", err)
	}

	s := &holoceneServer{
		cmd:     cmd,
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		apiKey:  apiKey,
		logFile: logFile,
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		logs, _ := os.ReadFile(logFile)
		t.Fatalf("holocene not healthy: %v\n%s", err, logs)
	}

	return s
}

func (s *holoceneServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *holoceneServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *holoceneServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("%s/api/v1/health", s.baseURL())

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("holocene not healthy after %s", timeout)
}

// plan runs a plan subcommand against the server and returns combined output.
func (s *holoceneServer) plan(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(holoceneBin, append([]string{"plan"}, args...)...)
	cmd.Env = append(os.Environ(),
		"HOLOCENE_SERVER_URL="+s.baseURL(),
		"HOLOCENE_API_KEY="+s.apiKey,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// writeScript writes an edit script into the server's data directory.
func (s *holoceneServer) writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(s.dataDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// freePort returns a free TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
