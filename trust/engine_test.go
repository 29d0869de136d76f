package trust

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apwatch/apwatch/types"
)

const trustedLabPolicy = `package apwatch

import rego.v1

trusted if {
	input.verdict.bssid == "AA:BB:CC:DD:EE:FF"
}

ignore if {
	input.verdict.ssid == "LabNet"
	input.verdict.severity == "INFO"
}
`

func TestEvaluateTrusted(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadPolicy(context.Background(), "lab.rego", trustedLabPolicy))

	decision, err := e.Evaluate(context.Background(), Input{
		Verdict: types.Verdict{
			BSSID:          "AA:BB:CC:DD:EE:FF",
			Severity:       types.SeverityCritical,
			Classification: types.ClassRogue,
		},
	})
	require.NoError(t, err)
	assert.True(t, decision.Trusted)
	assert.False(t, decision.Ignore)
	assert.Equal(t, []string{"lab.rego"}, decision.Policies)
}

func TestEvaluateIgnore(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadPolicy(context.Background(), "lab.rego", trustedLabPolicy))

	decision, err := e.Evaluate(context.Background(), Input{
		Verdict: types.Verdict{
			BSSID:    "11:22:33:44:55:66",
			SSID:     "LabNet",
			Severity: types.SeverityInfo,
		},
	})
	require.NoError(t, err)
	assert.False(t, decision.Trusted)
	assert.True(t, decision.Ignore)
}

func TestEvaluateNoMatch(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadPolicy(context.Background(), "lab.rego", trustedLabPolicy))

	decision, err := e.Evaluate(context.Background(), Input{
		Verdict: types.Verdict{BSSID: "11:22:33:44:55:66", SSID: "Other"},
	})
	require.NoError(t, err)
	assert.False(t, decision.Trusted)
	assert.False(t, decision.Ignore)
	assert.Empty(t, decision.Policies)
}

func TestLoadPolicyCompileError(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.LoadPolicy(context.Background(), "broken.rego", "this is not rego")
	require.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lab.rego"), []byte(trustedLabPolicy), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a policy"), 0644))

	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadDir(context.Background(), dir))
	assert.False(t, e.Empty())
}

func TestLoadDirMissingIsNotError(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	require.NoError(t, e.LoadDir(context.Background(), "/nonexistent/policies"))
	assert.True(t, e.Empty())
}
