//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestStatusServerStartStop runs an episode with --hold and checks the
// status endpoints before interrupting the process.
func TestStatusServerStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configFile, fmt.Sprintf(`
simulation:
  scenario: %q
  episodes: 1

evidence:
  enabled: false

telemetry:
  logging:
    level: "warn"
    format: "json"

server:
  enabled: true
  listen_address: "127.0.0.1:18090"
`, examplePath(t, "scenarios/highway.yaml")))

	binaryPath := buildDrivetwinBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "run", "--config", configFile, "--hold")
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start drivetwin: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	if !waitForHealthy("http://127.0.0.1:18090/ready", 10*time.Second) {
		t.Fatalf("status server failed to start\nStdout: %s\nStderr: %s", stdout.String(), stderr.String())
	}

	// The episode counter appears once the single episode has finished.
	if !waitForMetric("http://127.0.0.1:18090/metrics", "drivetwin_episodes_total", 30*time.Second) {
		t.Fatalf("episode metric never appeared\nStderr: %s", stderr.String())
	}

	resp, err := http.Get("http://127.0.0.1:18090/version")
	if err != nil {
		t.Fatalf("version request failed: %v", err)
	}
	defer resp.Body.Close()
	var version map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	if version["version"] == "" {
		t.Errorf("version response has no version: %v", version)
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Errorf("failed to send SIGINT: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected shutdown error: %v\nStderr: %s", err, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Error("drivetwin did not shut down within 10 seconds")
	}

	if !strings.Contains(stdout.String(), "highway") {
		t.Errorf("results should list the highway episode, got: %s", stdout.String())
	}
}

// TestPolicyValidationPipeline validates good and broken policies against the
// junction scenario.
func TestPolicyValidationPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	binaryPath := buildDrivetwinBinary(t)
	scenario := examplePath(t, "scenarios/junction.yaml")

	t.Run("valid policy", func(t *testing.T) {
		cmd := exec.Command(binaryPath, "validate",
			"--scenario", scenario,
			"--policy", examplePath(t, "policies/cross_junction.lua"))
		output, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("validate failed: %v\nOutput: %s", err, output)
		}
		if !bytes.Contains(output, []byte("✓ Policy cross_junction loads")) {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("broken policy", func(t *testing.T) {
		policyFile := filepath.Join(tmpDir, "broken.lua")
		createTestPolicy(t, policyFile, "policy = function(\n")

		cmd := exec.Command(binaryPath, "validate", "--scenario", scenario, "--policy", policyFile)
		output, err := cmd.CombinedOutput()
		if err == nil {
			t.Fatalf("validate should fail for a syntax error\nOutput: %s", output)
		}
		if !bytes.Contains(output, []byte("✗ Policy failed to load")) {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("removed function", func(t *testing.T) {
		policyFile := filepath.Join(tmpDir, "sandbox.lua")
		createTestPolicy(t, policyFile, "os.exit(1)\npolicy = function() end\n")

		cmd := exec.Command(binaryPath, "validate", "--scenario", scenario, "--policy", policyFile)
		if output, err := cmd.CombinedOutput(); err == nil {
			t.Errorf("validate should reject os.exit\nOutput: %s", output)
		}
	})
}

// TestEvidenceQueryPipeline runs a policy-driven episode and reads the
// recorded evidence back.
func TestEvidenceQueryPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configFile, fmt.Sprintf(`
policy:
  path: %q

simulation:
  scenario: %q
  duration: 5s
  episodes: 2

evidence:
  enabled: true
  backend: sqlite
  sqlite:
    path: %q

telemetry:
  logging:
    level: "error"
`, examplePath(t, "policies/overtake.lua"), examplePath(t, "scenarios/highway.yaml"),
		filepath.Join(tmpDir, "data", "evidence.db")))

	binaryPath := buildDrivetwinBinary(t)

	run := exec.Command(binaryPath, "run", "--config", configFile, "--format", "json")
	output, err := run.Output()
	if err != nil {
		t.Fatalf("run failed: %v\nOutput: %s", err, output)
	}
	var results []map[string]string
	if err := json.Unmarshal(output, &results); err != nil {
		t.Fatalf("failed to decode run results: %v\nOutput: %s", err, output)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	episodes := exec.Command(binaryPath, "events", "episodes", "--config", configFile, "--format", "json")
	output, err = episodes.Output()
	if err != nil {
		t.Fatalf("events episodes failed: %v", err)
	}
	var listed []map[string]string
	if err := json.Unmarshal(output, &listed); err != nil {
		t.Fatalf("failed to decode episodes: %v\nOutput: %s", err, output)
	}
	if len(listed) != 2 {
		t.Errorf("expected 2 episodes, got %d", len(listed))
	}

	query := exec.Command(binaryPath, "events", "query", "--config", configFile,
		"--kind", "policy_loaded", "--format", "csv")
	output, err = query.Output()
	if err != nil {
		t.Fatalf("events query failed: %v", err)
	}
	if got := bytes.Count(output, []byte("overtake")); got < 2 {
		t.Errorf("expected policy_loaded records for overtake in both episodes, got:\n%s", output)
	}

	verify := exec.Command(binaryPath, "events", "verify", "--config", configFile)
	output, err = verify.CombinedOutput()
	if err != nil {
		t.Fatalf("events verify failed: %v\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte(" 0 invalid")) {
		t.Errorf("unexpected verify output: %s", output)
	}
}

// TestLibraryPipeline adds a policy and finds it again.
func TestLibraryPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	libDir := filepath.Join(tmpDir, "library")
	policyFile := filepath.Join(tmpDir, "keep_right.lua")
	createTestPolicy(t, policyFile, "function keep_right()\n  set_target_lane(get_right_lane(get_ego_vehicle()))\nend\n")

	binaryPath := buildDrivetwinBinary(t)

	add := exec.Command(binaryPath, "library", "--dir", libDir, "add", "keep_right",
		"--file", policyFile, "--description", "move to the right lane")
	if output, err := add.CombinedOutput(); err != nil {
		t.Fatalf("library add failed: %v\nOutput: %s", err, output)
	}

	search := exec.Command(binaryPath, "library", "--dir", libDir, "search", "right", "lane")
	output, err := search.CombinedOutput()
	if err != nil {
		t.Fatalf("library search failed: %v\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte("keep_right")) {
		t.Errorf("search should find keep_right, got: %s", output)
	}
}

// TestCommandVersionOutput tests the version command
func TestCommandVersionOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binaryPath := buildDrivetwinBinary(t)

	cmd := exec.Command(binaryPath, "version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("version command failed: %v\nOutput: %s", err, output)
	}
	if !bytes.HasPrefix(output, []byte("drivetwin\n")) || !bytes.Contains(output, []byte("primitives:")) {
		t.Errorf("unexpected version output: %s", output)
	}
}

// Helper functions

// buildDrivetwinBinary builds the drivetwin binary for testing
func buildDrivetwinBinary(t *testing.T) string {
	t.Helper()

	binaryPath, err := filepath.Abs("../bin/drivetwin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	t.Log("Building drivetwin binary...")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/drivetwin")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build drivetwin: %v\nOutput: %s", err, output)
	}

	return binaryPath
}

// examplePath returns the absolute path of a file under examples/.
func examplePath(t *testing.T, name string) string {
	t.Helper()

	path, err := filepath.Abs(filepath.Join("..", "examples", name))
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// waitForHealthy waits for an endpoint to return 200
func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// waitForMetric polls a metrics endpoint until it exposes name.
func waitForMetric(url, name string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if strings.Contains(string(body), name) {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// createTestConfig creates a test configuration file
func createTestConfig(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
}

// createTestPolicy writes a Lua policy file
func createTestPolicy(t *testing.T, path, code string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		t.Fatalf("failed to create policy file: %v", err)
	}
}
