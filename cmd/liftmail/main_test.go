package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"liftmail/internal/api"
	"liftmail/internal/config"
	"liftmail/internal/daemonrun"
	"liftmail/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	mailbox    *testsupport.FakeMailbox
	uploader   *testsupport.FakeUploader
	notifier   *testsupport.FakeNotifier
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		mailbox:    testsupport.NewFakeMailbox(),
		uploader:   &testsupport.FakeUploader{},
		notifier:   &testsupport.FakeNotifier{},
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(
		daemonrun.WithDialer(e.mailbox),
		daemonrun.WithUploader(e.uploader),
		daemonrun.WithNotifier(e.notifier),
	)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func submission(t *testing.T) []byte {
	t.Helper()
	return testsupport.BuildMessage(t, testsupport.Message{
		From:      "athlete@example.com",
		Subject:   "New PR",
		MessageID: "cli-1@example.com",
		Body:      "Check out this squat",
		Videos:    []testsupport.Video{{Filename: "pr.mp4", Data: []byte("video")}},
	})
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Ledger:        sqlite")

	out, _, err = env.run(t, "config", "init", "--stdout")
	if err != nil {
		t.Fatalf("config init --stdout: %v", err)
	}
	requireContains(t, out, "[mailbox]")

	out, _, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "********")
	if strings.Contains(out, "secret") {
		t.Fatalf("config show leaked a password: %s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestParseCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "parse", "t30g", "100kg", "bench")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, out, "Weight: 100 kg")
	requireContains(t, out, "Lift:   Bench")

	if _, _, err := env.run(t, "parse", "nothing here"); err == nil || !strings.Contains(err.Error(), "No t30g tag found") {
		t.Fatalf("expected missing tag error, got %v", err)
	}

	out, _, err = env.run(t, "parse", "--json", "nothing here")
	if err != nil {
		t.Fatalf("parse --json: %v", err)
	}
	var resp api.ParseTestResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Input != "nothing here" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCheckLedgerReplayFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "competition", "add", "Spring", "Open", "--lift", "sq")
	if err != nil {
		t.Fatalf("competition add: %v", err)
	}
	requireContains(t, out, "Spring Open")

	out, _, err = env.run(t, "competition", "list")
	if err != nil {
		t.Fatalf("competition list: %v", err)
	}
	requireContains(t, out, "Squat")

	raw := submission(t)
	uid := env.mailbox.Deliver(raw)

	out, _, err = env.run(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Processed: 1")
	requireContains(t, out, "Succeeded: 1")
	if !env.mailbox.Seen(uid) {
		t.Fatal("expected message marked seen")
	}
	if env.uploader.Calls() != 1 {
		t.Fatalf("expected one upload, got %d", env.uploader.Calls())
	}
	if got := env.uploader.Requests[0].LiftType; got != "Squat" {
		t.Fatalf("expected competition default lift, got %q", got)
	}

	out, _, err = env.run(t, "ledger", "list", "--json")
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	var records []api.LedgerRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 || records[0].Status != "succeeded" || records[0].MessageID != "cli-1@example.com" {
		t.Fatalf("unexpected records %+v", records)
	}

	out, _, err = env.run(t, "ledger", "show", records[0].ID)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, records[0].Fingerprint)

	emlPath := filepath.Join(t.TempDir(), "pr.eml")
	if err := os.WriteFile(emlPath, raw, 0o644); err != nil {
		t.Fatalf("write eml: %v", err)
	}
	out, _, err = env.run(t, "replay", emlPath)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	requireContains(t, out, "skipped: duplicate")
	if env.uploader.Calls() != 1 {
		t.Fatal("replay of a succeeded message must not upload again")
	}

	out, _, err = env.run(t, "ledger", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("ledger list --status: %v", err)
	}
	requireContains(t, out, "No processing records")
}

func TestReplayReportsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	emlPath := filepath.Join(t.TempDir(), "pr.eml")
	if err := os.WriteFile(emlPath, submission(t), 0o644); err != nil {
		t.Fatalf("write eml: %v", err)
	}

	out, _, err := env.run(t, "replay", emlPath)
	if err == nil {
		t.Fatal("expected failure without an active competition")
	}
	requireContains(t, out, "failed:")
	if notices := env.notifier.Sent(); len(notices) != 1 || notices[0].Success {
		t.Fatalf("expected one failure notice, got %+v", notices)
	}
}

func TestLedgerListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "ledger", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestMigrateCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := env.run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	requireContains(t, out, "applied")
	requireContains(t, out, env.cfg.DatabasePath())
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs without file: %v", err)
	}
	requireContains(t, out, "No log lines")

	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "2026-01-02T03:04:05Z INFO  poller: poll tick message_uid=3\n" +
		"2026-01-02T03:04:06Z INFO  daemon: liftmail daemon started\n" +
		"2026-01-02T03:04:07Z INFO  poller: poll tick message_uid=4\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "liftmail.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err = env.run(t, "logs", "--component", "poller", "-n", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "message_uid=4")
	if strings.Contains(out, "message_uid=3") || strings.Contains(out, "daemon started") {
		t.Fatalf("unexpected lines: %s", out)
	}
}
