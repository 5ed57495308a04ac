package kind

import (
	"context"
	"testing"

	"github.com/specialistvlad/propshell/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func feedLikeSpec(t *testing.T) *Spec {
	t.Helper()
	spec, err := NewSpec("Feed", "test feed", []PropertySpec{
		{Name: "uri", Type: value.StringType, Access: ReadWrite, Default: cty.StringVal("https://example.com/rss")},
		{Name: "entries", Type: value.IntType, Access: Read, Range: &value.Range{Min: 0, Max: 10000}},
		{Name: "entry", Type: value.IntType, Range: &value.Range{Min: 0, Max: 10000}},
		{Name: "ratio", Type: value.FloatType, Default: cty.NumberIntVal(1)},
	}, []SignalSpec{{Name: "check-for-updates"}})
	require.NoError(t, err)
	return spec
}

func TestNewSpec_Indexes(t *testing.T) {
	spec := feedLikeSpec(t)

	id, ok := spec.Property("entry")
	require.True(t, ok)
	assert.Equal(t, PropID(2), id)
	assert.Equal(t, "entry", spec.Prop(id).Name)

	_, ok = spec.Property("missing")
	assert.False(t, ok)

	sig, ok := spec.Signal("check-for-updates")
	require.True(t, ok)
	assert.Equal(t, SignalID(0), sig)

	assert.Equal(t, []string{"uri", "entries", "entry", "ratio"}, spec.PropertyNames())
	assert.Equal(t, []string{"check-for-updates"}, spec.SignalNames())
}

func TestNewSpec_DefaultsAndAccess(t *testing.T) {
	spec := feedLikeSpec(t)

	entry := spec.Prop(2)
	assert.Equal(t, ReadWrite, entry.Access, "unset access defaults to readwrite")
	assert.Equal(t, "0", value.Format(entry.Default), "unset default is the zero value")
	assert.Equal(t, "1", value.Format(spec.Prop(3).Default))
}

func TestNewSpec_DefaultFollowsRange(t *testing.T) {
	spec, err := NewSpec("K", "", []PropertySpec{
		{Name: "count", Type: value.IntType, Range: &value.Range{Min: 1, Max: 10}},
		{Name: "offset", Type: value.FloatType, Range: &value.Range{Min: -3, Max: -0.5}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", value.Format(spec.Prop(0).Default))
	assert.Equal(t, "-0.5", value.Format(spec.Prop(1).Default))
}

func TestNewSpec_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		props   []PropertySpec
		signals []SignalSpec
	}{
		{name: "duplicate property", props: []PropertySpec{{Name: "a", Type: value.StringType}, {Name: "a", Type: value.IntType}}},
		{name: "unnamed property", props: []PropertySpec{{Type: value.StringType}}},
		{name: "range on string", props: []PropertySpec{{Name: "a", Type: value.StringType, Range: &value.Range{Max: 1}}}},
		{name: "default out of range", props: []PropertySpec{{Name: "a", Type: value.IntType, Default: cty.NumberIntVal(5), Range: &value.Range{Min: 1, Max: 2}}}},
		{name: "no integer in range", props: []PropertySpec{{Name: "a", Type: value.IntType, Range: &value.Range{Min: 0.2, Max: 0.8}}}},
		{name: "default wrong type", props: []PropertySpec{{Name: "a", Type: value.IntType, Default: cty.StringVal("x")}}},
		{name: "duplicate signal", signals: []SignalSpec{{Name: "s"}, {Name: "s"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSpec("K", "", tc.props, tc.signals)
			require.Error(t, err)
		})
	}
}

func TestParseAccess(t *testing.T) {
	for in, expected := range map[string]Access{"read": Read, "write": Write, "readwrite": ReadWrite, "": ReadWrite} {
		got, err := ParseAccess(in)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
	_, err := ParseAccess("sometimes")
	assert.Error(t, err)

	assert.Equal(t, "r-", Read.Flags())
	assert.Equal(t, "-w", Write.Flags())
	assert.Equal(t, "rw", ReadWrite.Flags())
}

func TestBag(t *testing.T) {
	spec := feedLikeSpec(t)
	inst, err := NewBag(spec, Env{Name: "b"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/rss", value.Format(inst.Get(0)))

	changed, err := inst.Set(context.Background(), 0, cty.StringVal("http://other"))
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, "http://other", value.Format(inst.Get(0)))

	changed, err = inst.Emit(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, changed)
}
