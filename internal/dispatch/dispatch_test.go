package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls [][]string
}

func (r *recorder) handler(ok bool) Handler {
	return func(args []string) bool {
		r.calls = append(r.calls, append([]string{}, args...))
		return ok
	}
}

func newTestTable(r *recorder) *Table {
	t := NewTable("test")
	t.Register("-m", r.handler(true), "Add modules")
	t.Alias("--modules", "-m")
	t.Register("-s", r.handler(false), "Stop here")
	return t
}

func TestDispatchGroupsArgumentsUntilNextFlag(t *testing.T) {
	r := &recorder{}
	table := newTestTable(r)

	res, err := table.Dispatch([]string{"-m", "a.lua", "b.lua", "--modules", "c.lua", "-m"})
	require.NoError(t, err)
	assert.Equal(t, Completed, res)
	assert.Equal(t, [][]string{{"a.lua", "b.lua"}, {"c.lua"}, {}}, r.calls)
}

func TestDispatchStopsWhenHandlerFails(t *testing.T) {
	r := &recorder{}
	table := newTestTable(r)

	res, err := table.Dispatch([]string{"-m", "a.lua", "-s", "x", "-m", "never.lua"})
	require.NoError(t, err)
	assert.Equal(t, Stopped, res)
	assert.Equal(t, [][]string{{"a.lua"}, {"x"}}, r.calls)
}

func TestDispatchRejectsUnknownFlag(t *testing.T) {
	r := &recorder{}
	table := newTestTable(r)

	res, err := table.Dispatch([]string{"-m", "a.lua", "-x", "b.lua"})
	assert.Equal(t, Rejected, res)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "-x", cerr.Token)
	assert.Len(t, r.calls, 1)
}

func TestDispatchRejectsLeadingPositional(t *testing.T) {
	r := &recorder{}
	table := newTestTable(r)

	res, err := table.Dispatch([]string{"a.lua", "-m", "b.lua"})
	assert.Equal(t, Rejected, res)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "a.lua", cerr.Token)
	assert.Empty(t, r.calls)
}

func TestDispatchEmptyIsCompleted(t *testing.T) {
	res, err := newTestTable(&recorder{}).Dispatch(nil)
	require.NoError(t, err)
	assert.Equal(t, Completed, res)
}

func TestRenderHelpListsCanonicalFlagsOnly(t *testing.T) {
	var buf bytes.Buffer
	newTestTable(&recorder{}).RenderHelp(&buf)

	want := "test help:\n" +
		"\t-m\n\t\tAdd modules\n" +
		"\t-s\n\t\tStop here\n" +
		"End of help topic\n"
	assert.Equal(t, want, buf.String())
}

func TestAliasSharesHandler(t *testing.T) {
	r := &recorder{}
	table := newTestTable(r)

	cmd, ok := table.Lookup("--modules")
	require.True(t, ok)
	assert.False(t, cmd.Canonical)
	assert.Empty(t, cmd.Help)
	assert.True(t, cmd.Handler([]string{"x"}))
	assert.Equal(t, [][]string{{"x"}}, r.calls)

	assert.Panics(t, func() { table.Alias("--nope", "-n") })
}
