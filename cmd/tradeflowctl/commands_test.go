package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templatesYAML = `templates:
  - template: {name: ILC Issuance, product_code: ILC, event_code: ISS, trigger_types: [Manual]}
    stages:
      - {stage_name: Data Entry, actor_type: __ALL__}
      - {stage_name: Limit Check, actor_type: __ALL__}
      - {stage_name: Final Approval, actor_type: __ALL__, is_rejectable: true, reject_to: Data Entry}
`

const fixtureYAML = templatesYAML + `permissions:
  is_super_user: true
request:
  user_id: maker-1
  product_code: ILC
  event_code: ISS
  trigger_type: Manual
  status: Data Entry Completed-Bank
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "tradeflowctl version "+Version+"\n", out)
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tradeflow.db")

	out, err := run(t, "migrate", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "at schema versions [1 2 3]")

	// second run is a no-op
	out, err = run(t, "migrate", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[1 2 3]")
}

func TestImportCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tradeflow.db")
	file := writeFile(t, "templates.yaml", templatesYAML)

	out, err := run(t, "import", "--db", dbPath, file)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 templates (3 stages, 0 fields)")
	assert.Contains(t, out, "replaced: ILC/ISS")

	// re-importing the same pair replaces it rather than duplicating
	out, err = run(t, "import", "--db", dbPath, file)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 templates")
}

func TestImportCommand_Errors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tradeflow.db")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing argument", []string{"import", "--db", dbPath}, "accepts 1 arg"},
		{"unsupported extension", []string{"import", "--db", dbPath, writeFile(t, "templates.csv", "a,b")}, "unsupported template file"},
		{"missing file", []string{"import", "--db", dbPath, filepath.Join(t.TempDir(), "nope.yaml")}, "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveCommand(t *testing.T) {
	file := writeFile(t, "fixture.yaml", fixtureYAML)

	tests := []struct {
		name        string
		args        []string
		wantStage   string
		wantOutcome string
	}{
		{"next stage", []string{"resolve", file}, "Limit Check", "STAGE"},
		{"fresh transaction", []string{"resolve", file, "--status", ""}, "Data Entry", "STAGE"},
		{"last stage done", []string{"resolve", file, "--status", "Final Approval Completed-Bank"}, "", "COMPLETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)

			var res struct {
				Target struct {
					StageName string `json:"stage_name"`
					Outcome   string `json:"outcome"`
				} `json:"target"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res), out)
			assert.Equal(t, tt.wantStage, res.Target.StageName)
			assert.Equal(t, tt.wantOutcome, res.Target.Outcome)
		})
	}
}

func TestResolveCommand_BadFixture(t *testing.T) {
	file := writeFile(t, "fixture.yaml", "templates: [\n")

	_, err := run(t, "resolve", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode fixture")
}
