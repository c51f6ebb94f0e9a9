package release

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/releaseflow/types"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1.2.3", want: "1.2.3"},
		{in: "v1.2.3", want: "1.2.3"},
		{in: " 0.1.0\n", want: "0.1.0"},
		{in: "1.2.3-rc.1", want: "1.2.3-rc.1"},
		{in: "1.2.3+build.7", want: "1.2.3+build.7"},
		{in: "1.2", wantErr: true},
		{in: "1", wantErr: true},
		{in: "latest", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalid, types.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBump(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		kind    BumpKind
		want    string
	}{
		{"1.2.3", BumpPatch, "1.2.4"},
		{"1.2.3", BumpMinor, "1.3.0"},
		{"1.2.3", BumpMajor, "2.0.0"},
		{"1.2.3", BumpNone, "1.2.3"},
		{"0.9.9", BumpMinor, "0.10.0"},
		{"2.0.0-rc.1", BumpPatch, "2.0.1"},
		{"v3.1.4", BumpMajor, "4.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.version+"/"+string(tt.kind), func(t *testing.T) {
			got, err := Bump(tt.version, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Bump("1.2.3", BumpKind("huge"))
	assert.Equal(t, types.ErrInvalid, types.GetErrorCode(err))
	_, err = Bump("nope", BumpPatch)
	assert.Error(t, err)
}

func TestParseBumpKind(t *testing.T) {
	t.Parallel()

	k, err := ParseBumpKind("")
	require.NoError(t, err)
	assert.Equal(t, BumpKind(""), k)

	k, err = ParseBumpKind(" Minor ")
	require.NoError(t, err)
	assert.Equal(t, BumpMinor, k)

	_, err = ParseBumpKind("giant")
	assert.Error(t, err)

	assert.Equal(t, BumpMajor, BumpMinor.Max(BumpMajor))
	assert.Equal(t, BumpMinor, BumpMinor.Max(BumpPatch))
}

func TestTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v1.4.0", TagName("v", "1.4.0"))
	assert.Equal(t, "release-1.4.0", TagName("release-", "1.4.0"))

	v, err := VersionFromTag("v", "v1.4.0")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", v)

	_, err = VersionFromTag("release-", "v1.4.0")
	assert.Error(t, err)

	assert.Equal(t, 1, CompareVersions("1.10.0", "1.9.0"))
	assert.Equal(t, -1, CompareVersions("v1.0.0-rc.1", "1.0.0"))
	assert.Equal(t, 0, CompareVersions("1.0.0", "v1.0.0"))
}

// Property: every real bump produces a strictly greater version.
func TestProperty_BumpIncreases(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		major := rapid.IntRange(0, 50).Draw(rt, "major")
		minor := rapid.IntRange(0, 50).Draw(rt, "minor")
		patch := rapid.IntRange(0, 50).Draw(rt, "patch")
		kind := rapid.SampledFrom([]BumpKind{BumpPatch, BumpMinor, BumpMajor}).Draw(rt, "kind")

		current := fmt.Sprintf("%d.%d.%d", major, minor, patch)
		next, err := Bump(current, kind)
		require.NoError(rt, err)
		assert.Equal(rt, 1, CompareVersions(next, current))
	})
}
