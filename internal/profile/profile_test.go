package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
name: racing
description: two pads, second one sandboxed
variables:
  dir: pads
steps:
  - modules: ["${dir}/wheel.lua"]
  - id: sandbox
    libraries: "7"
    modules:
      - ${dir}/pedals.lua
      - /abs/shifter.lua
`

func TestParseAssignsStepIDs(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "racing", p.Name)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "step_1", p.Steps[0].ID)
	assert.Equal(t, "sandbox", p.Steps[1].ID)
	require.NoError(t, p.Validate())
}

func TestArgsOrderAndResolution(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	p.Dir = "/profiles"

	assert.Equal(t, []string{
		"-m", filepath.Join("/profiles", "pads", "wheel.lua"),
		"-l", "7",
		"-m", filepath.Join("/profiles", "pads", "pedals.lua"), "/abs/shifter.lua",
	}, p.Args())
	assert.Len(t, p.Modules(), 3)
}

func TestOverrideVariables(t *testing.T) {
	p, err := Parse([]byte(sample))
	require.NoError(t, err)
	p.Override(map[string]string{"dir": "other"})

	assert.Equal(t, filepath.Join("other", "wheel.lua"), p.Modules()[0])
}

func TestValidateReportsProblems(t *testing.T) {
	p := &Profile{Steps: []Step{
		{ID: "a", Libraries: "lots"},
		{ID: "a", Modules: []string{"-x"}},
		{ID: "c"},
		{ID: "d", Modules: []string{"${missing}/x.lua"}},
	}}
	err := p.Validate()
	require.Error(t, err)
	for _, want := range []string{"name is required", "duplicate id", "looks like a flag", "needs libraries or modules", "unresolved variable", "step a:"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts", "starter.yaml")
	require.NoError(t, Save(Template("starter"), path))

	p, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, filepath.Dir(path), p.Dir)
	assert.Equal(t, []string{"-l", "573", "-m", filepath.Join(filepath.Dir(path), "pad.lua")}, p.Args())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
