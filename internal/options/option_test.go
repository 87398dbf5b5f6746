package options

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionSetRespectsSourceRank(t *testing.T) {
	o := &Option{Name: "buildtype", Type: TypeCombo, Choices: []string{"debug", "release"}, Default: "debug", Current: "debug", Source: SourceDefault}

	require.NoError(t, o.Set("release", SourceDefaultOptions))
	require.Equal(t, "release", o.Current)
	require.Equal(t, SourceDefaultOptions, o.Source)

	// A lower-ranked source must not clobber the higher-ranked value.
	require.NoError(t, o.Set("debug", SourceEnvironment))
	require.Equal(t, "release", o.Current)

	require.NoError(t, o.Set("debug", SourceCommandline))
	require.Equal(t, "debug", o.Current)
}

func TestOptionComboRejectsUnknownChoice(t *testing.T) {
	o := &Option{Name: "buildtype", Type: TypeCombo, Choices: []string{"debug", "release"}, Default: "debug", Current: "debug"}
	require.Error(t, o.Set("bogus", SourceCommandline))
	require.Equal(t, "debug", o.Current)
}

func TestOptionIntegerRange(t *testing.T) {
	min, max := int64(0), int64(10)
	o := &Option{Name: "n", Type: TypeInteger, Min: &min, Max: &max, Default: int64(0), Current: int64(0)}
	require.NoError(t, o.Set(int64(5), SourceCommandline))
	require.Equal(t, int64(5), o.Current)
	require.Error(t, o.Set(int64(11), SourceCommandline))
}

func TestStoreDeclareAndApplyEnvironment(t *testing.T) {
	s := NewStore()
	s.Declare(Option{Name: "env.CC", Type: TypeString, Default: ""})
	s.ApplyEnvironment([]string{"CC=clang", "UNRELATED=1"})

	o, ok := s.Get("env.CC")
	require.True(t, ok)
	require.Equal(t, "clang", o.Current)
	require.Equal(t, SourceEnvironment, o.Source)
}

func TestStoreSetUnknownOption(t *testing.T) {
	s := NewStore()
	require.Error(t, s.Set("nonexistent", "x", SourceCommandline))
}
