package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/bgricker/flowreport/internal/convert"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errBuf)

	err := cmd.Execute()
	return out.String(), errBuf.String(), err
}

func TestConvertCommand(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)
	results := t.TempDir()

	out, _, err := execute(t, "convert",
		"--log", "testdata/logs/login/maestro.log",
		"--output", results,
		"--suite", "smoke",
		"--name", "login",
		"--env", "device=emulator-5554",
	)
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	for _, want := range []string{"✗ login [smoke] (3 steps)", "✓ Tap on \"Log in\"", "Assertion is false"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}

	resultFiles, _ := filepath.Glob(filepath.Join(results, "*-result.json"))
	attachments, _ := filepath.Glob(filepath.Join(results, "*-attachment.txt"))
	if len(resultFiles) != 1 || len(attachments) != 1 {
		t.Fatalf("expected one result and one attachment, got %v %v", resultFiles, attachments)
	}
	env, err := os.ReadFile(filepath.Join(results, "environment.properties"))
	if err != nil {
		t.Fatalf("read environment: %v", err)
	}
	if !strings.Contains(string(env), "device=emulator-5554") {
		t.Fatalf("unexpected environment %q", env)
	}
}

func TestConvertCommandJSON(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "convert",
		"--log", "testdata/logs/search/maestro.log",
		"--output", t.TempDir(),
		"--attach-log=false",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var rep struct {
		Grammar    string `json:"grammar"`
		Conversion struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Steps  int    `json:"steps"`
		} `json:"conversion"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if rep.Grammar == "" {
		t.Fatalf("expected grammar version in %q", out)
	}
	if rep.Conversion.Name != "search" || rep.Conversion.Status != "passed" || rep.Conversion.Steps != 3 {
		t.Fatalf("unexpected conversion %+v", rep.Conversion)
	}
}

func TestConvertCommandRemoteCredentials(t *testing.T) {
	agents := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		if user, pass, ok := r.BasicAuth(); !ok || user != "ci" || pass != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("✓ Launch app\n"))
	}))
	defer srv.Close()
	chdir(t, t.TempDir())
	url := srv.URL + "/sessions/42/login/maestro.log"

	if _, _, err := execute(t, "convert", "--log", url, "--output", t.TempDir(),
		"--username", "ci", "--access-key", "key-1"); err != nil {
		t.Fatalf("convert with flags: %v", err)
	}
	if agent := <-agents; !strings.HasPrefix(agent, "flowreport/") {
		t.Fatalf("unexpected user agent %q", agent)
	}

	t.Setenv("BROWSERSTACK_USERNAME", "ci")
	t.Setenv("BROWSERSTACK_ACCESS_KEY", "key-1")
	if _, _, err := execute(t, "convert", "--log", url, "--output", t.TempDir()); err != nil {
		t.Fatalf("convert with env credentials: %v", err)
	}

	_, _, err := execute(t, "convert", "--log", url, "--output", t.TempDir(), "--access-key", "stale")
	if err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestConvertCommandNotFound(t *testing.T) {
	chdir(t, t.TempDir())

	_, _, err := execute(t, "convert", "--log", "missing/maestro.log")
	if err == nil {
		t.Fatalf("expected error for missing log")
	}
	if !errors.Is(err, convert.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestBatchCommand(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)
	results := t.TempDir()

	out, _, err := execute(t, "batch",
		"--root", "testdata/logs",
		"--flows", "testdata/flows",
		"--output", results,
		"--workers", "2",
	)
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	for _, want := range []string{
		"- checkout skipped: maestro.log not found",
		"✗ login (3 steps)",
		"✓ search (3 steps)",
		"SUMMARY: 2 converted, 1 skipped, 0 errors (1 passed, 1 failed, 0 skipped, 0 unknown)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}

	resultFiles, _ := filepath.Glob(filepath.Join(results, "*-result.json"))
	if len(resultFiles) != 2 {
		t.Fatalf("expected two results, got %v", resultFiles)
	}
}

func TestBatchCommandFilterJSON(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "batch",
		"--root", "testdata/logs",
		"--output", t.TempDir(),
		"--skip-flow", "login",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var rep struct {
		Summary struct {
			Converted int `json:"converted"`
			Skipped   int `json:"skipped"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if rep.Summary.Converted != 1 || rep.Summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", rep.Summary)
	}
}

func TestBatchCommandEmpty(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	if err := os.MkdirAll(filepath.Join(tmp, "maestro-logs", "login"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	out, _, err := execute(t, "batch")
	if !errors.Is(err, convert.ErrBatchEmpty) {
		t.Fatalf("expected ErrBatchEmpty, got %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(out, "SUMMARY: 0 converted, 1 skipped") {
		t.Fatalf("expected summary even when empty, got %q", out)
	}
}

func TestBatchCommandConfigFile(t *testing.T) {
	root := projectRoot(t)
	tmp := t.TempDir()
	copyDir(t, filepath.Join(root, "testdata", "logs"), filepath.Join(tmp, "logs"))

	configTOML := []byte(`suite = "Wikipedia"
root = "logs"
output = "out"
only_flow = ["/^search$/"]
`)
	if err := os.WriteFile(filepath.Join(tmp, ".flowreport.toml"), configTOML, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, tmp)

	out, _, err := execute(t, "batch")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	if !strings.Contains(out, "Suite Wikipedia") || !strings.Contains(out, "SUMMARY: 1 converted, 0 skipped") {
		t.Fatalf("unexpected output %q", out)
	}
	if files, _ := filepath.Glob(filepath.Join(tmp, "out", "*-result.json")); len(files) != 1 {
		t.Fatalf("expected one result in configured output, got %v", files)
	}
}

func TestFlowsCommand(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "flows", "--flows", "testdata/flows")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	want := readGolden(t, filepath.Join(root, "testdata", "golden", "flows_basic.txt"))
	if diff := diffStrings(want, out); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestFlowsCommandFilterJSON(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "flows", "--flows", "testdata/flows", "--flow", "/login/", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	var rep struct {
		Flows []struct {
			Path string   `json:"path"`
			Tags []string `json:"tags"`
		} `json:"flows"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(rep.Flows) != 1 || rep.Flows[0].Path != filepath.Join("testdata", "flows", "login.yaml") {
		t.Fatalf("unexpected flows %+v", rep.Flows)
	}
}

func TestRunCommandDryRun(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)
	logs := filepath.Join(t.TempDir(), "logs")

	out, _, err := execute(t, "run",
		"--flows", "testdata/flows",
		"--logs", logs,
		"--param", "USER=qa",
		"--dry-run",
	)
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	wantCmd := fmt.Sprintf("maestro test %s --debug-output %s -e USER=qa",
		filepath.Join("testdata", "flows", "login.yaml"), filepath.Join(logs, "login"))
	if !strings.Contains(out, wantCmd) {
		t.Fatalf("expected %q in output, got %q", wantCmd, out)
	}
	if !strings.Contains(out, "RUNS: 2 flows, 0 failed") {
		t.Fatalf("expected runs line, got %q", out)
	}
	if _, err := os.Stat(logs); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create %s", logs)
	}
}

func TestRunCommandConvertsLogs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake maestro is a shell script")
	}

	root := projectRoot(t)
	tmp := t.TempDir()
	copyDir(t, filepath.Join(root, "testdata", "flows"), filepath.Join(tmp, "flows"))

	script := `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "Maestro 1.39.13"
  exit 0
fi
case "$2" in
  *login*)
    printf '✓ Launch app\n✗ Tap on "Log in"\n    Element not found\n'
    exit 1
    ;;
  *)
    printf '✓ Launch app\n✓ Input text Maestro\n'
    ;;
esac
`
	maestroBin := filepath.Join(tmp, "maestro")
	if err := os.WriteFile(maestroBin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake maestro: %v", err)
	}
	configYAML := fmt.Sprintf("suite: nightly\nflows_dir: flows\nlogs_dir: logs\noutput: results\ntools:\n  maestro: %s\n  maestro_version: \"1.38\"\n", maestroBin)
	if err := os.WriteFile(filepath.Join(tmp, ".flowreport.yml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, tmp)

	out, errOut, err := execute(t, "run")
	if err == nil {
		t.Fatalf("expected failed flow to fail the run")
	}
	if code := exitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1 (%v)", code, err)
	}
	if !strings.Contains(err.Error(), "1 of 2 flows failed") {
		t.Fatalf("unexpected error %v", err)
	}
	for _, want := range []string{
		"RUNS: 2 flows, 1 failed",
		"✗ login (2 steps)",
		"✓ search (2 steps)",
		"SUMMARY: 2 converted, 0 skipped, 0 errors (1 passed, 1 failed, 0 skipped, 0 unknown)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
	if !strings.Contains(errOut, "maestro version mismatch: required 1.38 but found 1.39.13") {
		t.Fatalf("expected version warning, got %q", errOut)
	}
	if _, err := os.Stat(filepath.Join(tmp, "logs", "search", "maestro.log")); err != nil {
		t.Fatalf("expected console log to be kept: %v", err)
	}
}

func TestGenerateCommandDryRun(t *testing.T) {
	chdir(t, t.TempDir())

	out, _, err := execute(t, "generate", "--results", "res", "--report", "html", "--dry-run")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	if strings.TrimSpace(out) != "allure generate res -o html --clean" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateCommandMissingAllure(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	configYAML := fmt.Sprintf("tools:\n  allure: %s\n", filepath.Join(tmp, "no-such-allure"))
	if err := os.WriteFile(filepath.Join(tmp, ".flowreport.yml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := execute(t, "generate")
	if err == nil || !strings.Contains(err.Error(), "allure executable not found") {
		t.Fatalf("expected missing allure error, got %v", err)
	}
}

func TestVersionCommandJSON(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	configYAML := fmt.Sprintf("tools:\n  maestro: %s\n  allure: %s\n",
		filepath.Join(tmp, "no-maestro"), filepath.Join(tmp, "no-allure"))
	if err := os.WriteFile(filepath.Join(tmp, ".flowreport.yml"), []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}
	var rep versionReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if rep.Version != Version || len(rep.Tools) != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	for _, tool := range rep.Tools {
		if tool.Error != "not found" {
			t.Fatalf("expected %s to be reported missing, got %+v", tool.Name, tool)
		}
	}
}

func TestInvalidEnvFlag(t *testing.T) {
	chdir(t, t.TempDir())

	_, _, err := execute(t, "batch", "--env", "novalue")
	if err == nil || !strings.Contains(err.Error(), "is not key=value") {
		t.Fatalf("expected key=value error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{fmt.Errorf("batch: %w", convert.ErrBatchEmpty), 2},
		{withCode(3, errors.New("custom")), 3},
		{&convert.IOError{Op: "write", Path: "out", Err: os.ErrPermission}, 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root := filepath.Clean(filepath.Join(wd, "..", ".."))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("locate project root: %v", err)
	}
	return root
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %q: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore dir: %v", err)
		}
	})
}

func readGolden(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden %q: %v", path, err)
	}
	return string(data)
}

func copyDir(t *testing.T, src, dst string) {
	t.Helper()
	entries, err := os.ReadDir(src)
	if err != nil {
		t.Fatalf("read dir %q: %v", src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatalf("mkdir %q: %v", dst, err)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			copyDir(t, srcPath, dstPath)
			continue
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			t.Fatalf("read file %q: %v", srcPath, err)
		}
		if err := os.WriteFile(dstPath, data, 0o644); err != nil {
			t.Fatalf("write file %q: %v", dstPath, err)
		}
	}
}

func diffStrings(want, got string) string {
	if want == got {
		return ""
	}
	return "--- want\n" + want + "\n--- got\n" + got
}
