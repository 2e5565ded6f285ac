//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const repoRootRel = ".."
const mainPkgRel = "./cmd/eolos-node"

const (
	deviceName  = "SmokeNode"
	topicPrefix = "eolos"
)

var mqttPort = nat.Port("1883/tcp")

func TestSmoke_NodePublishes(t *testing.T) {
	repoRoot := repoRootPath(t)

	host, port := startBroker(t)
	emissions := subscribe(t, host, port, topicPrefix+"/nodes/"+deviceName+"/emissions")

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)
	dbPath := filepath.Join(t.TempDir(), "node.db")

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"DEVICE_NAME="+deviceName,
		"RADIO_BACKEND=loopback",
		"SENSOR_BACKEND=fixed",
		"FIXED_GAS_RAW=2100",
		"FIXED_REF_RAW=2048",
		"MEASUREMENT_SCALE=100",
		"SAMPLE_INTERVAL=200ms",
		"MQTT_BROKER="+host,
		"MQTT_PORT="+port,
		"MQTT_TOPIC_PREFIX="+topicPrefix,
		"SQLITE_PATH="+dbPath,
		"HTTP_ADDR="+addr,
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr

	waitForOK(t, client, base+"/healthz", 10*time.Second)

	select {
	case body := <-emissions:
		var msg struct {
			Device string  `json:"device"`
			Mode   string  `json:"mode"`
			Kind   string  `json:"kind"`
			Value  float64 `json:"value"`
			Major  *int    `json:"major"`
			Frame  string  `json:"frame"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Fatalf("decode emission: %v", err)
		}
		if msg.Device != deviceName {
			t.Fatalf("device=%q want=%q", msg.Device, deviceName)
		}
		if msg.Kind != "o3" {
			t.Fatalf("kind=%q want=o3", msg.Kind)
		}
		if msg.Major == nil || *msg.Major>>8 != 1 {
			t.Fatalf("major=%v want kind o3 in high byte", msg.Major)
		}
		if len(msg.Frame) != 50 {
			t.Fatalf("frame=%q want 25 bytes of hex", msg.Frame)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("no emission on broker")
	}

	var status struct {
		Mode         string `json:"mode"`
		Advertising  bool   `json:"advertising"`
		LastEmission *struct {
			Kind string `json:"kind"`
		} `json:"last_emission"`
	}
	getJSON(t, client, base+"/status", &status)
	if !status.Advertising {
		t.Fatalf("status.advertising=false want=true")
	}
	if status.LastEmission == nil || status.LastEmission.Kind != "o3" {
		t.Fatalf("status.last_emission=%+v", status.LastEmission)
	}

	var recent struct {
		Emissions []json.RawMessage `json:"emissions"`
	}
	getJSON(t, client, base+"/emissions?limit=5", &recent)
	if len(recent.Emissions) == 0 {
		t.Fatalf("journal is empty")
	}

	stopNode(t, cmd)
}

func startBroker(t *testing.T) (string, string) {
	t.Helper()

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:1.6",
		ExposedPorts: []string{string(mqttPort)},
		WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, mapped.Port()
}

func subscribe(t *testing.T, host, port, topic string) <-chan []byte {
	t.Helper()

	out := make(chan []byte, 16)
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(host, port)).
		SetClientID("eolos-smoke").
		SetConnectTimeout(5 * time.Second)

	c := mqtt.NewClient(opts)
	if tok := c.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("mqtt connect: %v", tok.Error())
	}
	t.Cleanup(func() { c.Disconnect(250) })

	tok := c.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case out <- m.Payload():
		default:
		}
	})
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("mqtt subscribe %s: %v", topic, tok.Error())
	}
	return out
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "eolos-node")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("node not healthy after %s: %s", timeout, url)
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status=%d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func stopNode(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("node did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("node exited non-zero: %v", err)
			}
			t.Fatalf("node wait error: %v", err)
		}
	}
}
