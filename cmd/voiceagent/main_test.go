package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSchemaCommand(t *testing.T) {
	out, err := runCommand(t, "schema")
	if err != nil {
		t.Fatalf("expected schema command to succeed, got %v", err)
	}

	var schemas map[string]map[string]any
	if err := json.Unmarshal([]byte(out), &schemas); err != nil {
		t.Fatalf("expected JSON output, got %v", err)
	}
	for _, name := range []string{"client_message", "server_message", "session_config"} {
		if _, ok := schemas[name]; !ok {
			t.Fatalf("expected schema %q in %v", name, schemas)
		}
	}
	properties, _ := schemas["session_config"]["properties"].(map[string]any)
	if _, ok := properties["system_prompt"]; !ok {
		t.Fatalf("expected system_prompt property, got %v", properties)
	}
}

func TestSearchCommand(t *testing.T) {
	dir := t.TempDir()
	document := filepath.Join(dir, "products.md")
	if err := os.WriteFile(document, []byte(`# Products

### Retirement Plan
A flexible retirement savings plan with guaranteed interest for pillar 3a.

### Travel Insurance
Coverage for cancellations and medical emergencies while travelling abroad.
`), 0o600); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	t.Setenv("RAG_DOCUMENTS_PATH", document)

	out, err := runCommand(t, "search", "retirement", "savings")
	if err != nil {
		t.Fatalf("expected search to succeed, got %v", err)
	}
	if !strings.HasPrefix(out, "1. Retirement Plan") {
		t.Fatalf("expected the retirement plan first, got %q", out)
	}
}

func TestServeRequiresKeys(t *testing.T) {
	for _, variable := range []string{"ANTHROPIC_API_KEY", "ELEVENLABS_API_KEY", "LLM_PROVIDER", "STT_PROVIDER", "TTS_PROVIDER"} {
		t.Setenv(variable, "")
	}

	_, err := runCommand(t, "serve")
	if err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
