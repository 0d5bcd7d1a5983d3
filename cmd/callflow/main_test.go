package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/callflow/pkg/adapters/file"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFlow(t *testing.T, flow domain.Flow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), flow.ID+".yaml")
	require.NoError(t, file.WriteFlow(path, flow))
	return path
}

func reminder() domain.Flow {
	return dsl.New("reminder", "Reminder").
		Start("root", "Hi {first_name}, is {day} still good?").
		Branch("yes", "bye").
		Branch("no", "agent").
		Transfer("agent", "Connecting you.").Outcome("escalated").
		End("bye", "Great, talk soon.", "confirmed").
		MustFlow()
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "callflow version "))
}

func TestValidate(t *testing.T) {
	out, err := run(t, "", "validate", writeFlow(t, reminder()))
	require.NoError(t, err)
	assert.Contains(t, out, "Flow is valid!")

	withOrphan := dsl.New("orphan", "Orphan").
		Start("root", "Hello").Branch("yes", "bye").
		End("bye", "Bye", "done").
		Say("lost", "Nobody reaches me").
		MustFlow()
	out, err = run(t, "", "validate", writeFlow(t, withOrphan))
	require.Error(t, err)
	assert.Contains(t, out, "orphan   lost")
}

func TestVariables(t *testing.T) {
	path := writeFlow(t, reminder())

	out, err := run(t, "", "variables", path)
	require.NoError(t, err)
	assert.Equal(t, "day\nfirst_name\n", out)

	out, err = run(t, "", "variables", path, "--fields", "First Name,day,phone")
	require.NoError(t, err)
	assert.Contains(t, out, "extra:   phone")
}

func TestGraph(t *testing.T) {
	out, err := run(t, "", "graph", writeFlow(t, reminder()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))
	assert.Contains(t, out, "root")
}

func TestPreview(t *testing.T) {
	sessions := t.TempDir()
	path := writeFlow(t, reminder())

	out, err := run(t, "no\n", "preview", path,
		"--contact", "first_name=Ana", "--contact", "day=Friday",
		"--session", "s1", "--sessions-dir", sessions)
	require.NoError(t, err)
	assert.Contains(t, out, "Hi Ana, is Friday still good?")
	assert.Contains(t, out, "Transferred")

	out, err = run(t, "", "graph", path, "--session", "s1", "--sessions-dir", sessions)
	require.NoError(t, err)
	assert.Contains(t, out, "class agent current")
}

func TestFlowsImportAndList(t *testing.T) {
	dir := filepath.Dir(writeFlow(t, reminder()))

	out, err := run(t, "", "flows", "import", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "imported reminder")
}

func TestParseContact(t *testing.T) {
	got, err := parseContact([]string{"name=Ana", " day =Fri=day"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Ana", "day": "Fri=day"}, got)

	_, err = parseContact([]string{"novalue"})
	assert.Error(t, err)
}
