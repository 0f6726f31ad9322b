package protocol_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/scenesync/internal/protocol"
)

func TestParseCommand_Basic(t *testing.T) {
	cmd := protocol.ParseCommand("  Rename pCube1 Chair#2  ")
	assert.Equal(t, "rename", cmd.Verb)
	assert.Equal(t, []string{"pCube1", "Chair#2"}, cmd.Args)
}

func TestParseCommand_Empty(t *testing.T) {
	cmd := protocol.ParseCommand("   ")
	assert.Empty(t, cmd.Verb)
	assert.Empty(t, cmd.Args)
}

func TestParseCommand_KeepsGroupsWhole(t *testing.T) {
	cmd := protocol.ParseCommand("spawn /Game/Chair Chair T=(1 2 3) S=(1 1 1)")
	assert.Equal(t, []string{"/Game/Chair", "Chair", "T=(1 2 3)", "S=(1 1 1)"}, cmd.Args)

	cmd = protocol.ParseCommand("renamelist [a, b] [c,d]")
	assert.Equal(t, []string{"[a, b]", "[c,d]"}, cmd.Args)
}

func TestParseCommand_StrayBracketsAreText(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"rename Chair Lamp)", []string{"Chair", "Lamp)"}},
		{"rename Chair Sofa]1", []string{"Chair", "Sofa]1"}},
		{"rename Chair Desk(2)", []string{"Chair", "Desk(2)"}},
		{"rename Chair Lamp(2", []string{"Chair", "Lamp(2"}},
		{"spawn x T=(1 2 3", []string{"x", "T=(1", "2", "3"}},
		{"renamelist [a,b", []string{"[a,b"}},
		{"rename a] b)) c", []string{"a]", "b))", "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, protocol.ParseCommand(tc.line).Args)
		})
	}
}

// Property: tokenizing never fails and never drops non-space text.
func TestPropertyParseCommand_KeepsText(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.StringMatching(`[a-z()\[\] ]{0,30}`).Draw(t, "line")
		cmd := protocol.ParseCommand(line)
		got := strings.Join(append([]string{cmd.Verb}, cmd.Args...), "")
		want := strings.ToLower(strings.NewReplacer(" ", "").Replace(line))
		if strings.ReplaceAll(got, " ", "") != want {
			t.Fatalf("ParseCommand(%q) lost text: %q", line, got)
		}
	})
}

func TestParseList(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"[name1,name2,name3]", []string{"name1", "name2", "name3"}},
		{"[a, b]", []string{"a", "b"}},
		{"[]", []string{}},
		{"", []string{}},
		{"[a,,c]", []string{"a", "", "c"}},
		{"[single]", []string{"single"}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, protocol.ParseList(tc.input))
		})
	}
}

func TestParseList_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(rapid.StringMatching(`[A-Za-z0-9_]{1,8}`), 1, 6).Draw(t, "items")
		assert.Equal(t, items, protocol.ParseList(protocol.FormatList(items)))
	})
}

func TestParseTransform_AllComponents(t *testing.T) {
	tr, err := protocol.ParseTransform("T=(1 2.5 -3) R=(0 90 0) S=(1 1 2)")
	require.NoError(t, err)
	require.NotNil(t, tr.Translation)
	require.NotNil(t, tr.Rotation)
	require.NotNil(t, tr.Scale)
	assert.Equal(t, protocol.Vector{1, 2.5, -3}, *tr.Translation)
	assert.Equal(t, protocol.Vector{0, 90, 0}, *tr.Rotation)
	assert.Equal(t, protocol.Vector{1, 1, 2}, *tr.Scale)
	assert.Equal(t, "T=(1 2.5 -3) R=(0 90 0) S=(1 1 2)", tr.String())
}

func TestParseTransform_PartialAndEmpty(t *testing.T) {
	tr, err := protocol.ParseTransform("R=(10 0 0)")
	require.NoError(t, err)
	assert.Nil(t, tr.Translation)
	assert.Nil(t, tr.Scale)
	assert.Equal(t, "R=(10 0 0)", tr.String())

	tr, err = protocol.ParseTransform("nothing here")
	require.NoError(t, err)
	assert.True(t, tr.IsZero())
}

func TestParseTransform_Errors(t *testing.T) {
	for _, s := range []string{"T=(1 2)", "T=(1 2 x)", "T=(1 2 3) T=(4 5 6)"} {
		_, err := protocol.ParseTransform(s)
		assert.Error(t, err, s)
	}
}

func TestTransform_Merge(t *testing.T) {
	base, err := protocol.ParseTransform("T=(1 1 1) S=(2 2 2)")
	require.NoError(t, err)
	patch, err := protocol.ParseTransform("T=(5 5 5) R=(0 0 90)")
	require.NoError(t, err)

	merged := base.Merge(patch)
	assert.Equal(t, "T=(5 5 5) R=(0 0 90) S=(2 2 2)", merged.String())
	assert.Equal(t, "T=(1 1 1) S=(2 2 2)", base.String(), "merge must not alias its inputs")
}

func TestParseTransform_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := protocol.Vector{
			float64(rapid.IntRange(-1000, 1000).Draw(t, "x")),
			float64(rapid.IntRange(-1000, 1000).Draw(t, "y")),
			float64(rapid.IntRange(-1000, 1000).Draw(t, "z")),
		}
		in := protocol.Transform{Translation: &v}
		out, err := protocol.ParseTransform(in.String())
		require.NoError(t, err)
		require.NotNil(t, out.Translation)
		assert.Equal(t, v, *out.Translation)
		assert.False(t, strings.Contains(out.String(), "R="))
	})
}
