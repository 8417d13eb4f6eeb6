package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ----
// NormalizeHex
// ----

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare hex", in: "C97E80", want: "C97E80"},
		{name: "lowercase", in: "c97e80", want: "C97E80"},
		{name: "padded", in: "00000000C97E80", want: "C97E80"},
		{name: "fv extension", in: "C97E80.fv", want: "C97E80"},
		{name: "uppercase extension", in: "00000000C97E80.FV", want: "C97E80"},
		{name: "windows path", in: `E:\vaults\cache\C97E80.fv`, want: "C97E80"},
		{name: "unix path", in: "/srv/vault/00000000C97E80", want: "C97E80"},
		{name: "zero", in: "0", want: "0"},
		{name: "all zeros", in: "00000000000000", want: "0"},
		{name: "surrounding space", in: "  1A2b  ", want: "1A2B"},
		{name: "empty", in: "", want: ""},
		{name: "extension only", in: ".fv", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHex(tt.in))
		})
	}
}

func TestNormalizeHex_Idempotent(t *testing.T) {
	inputs := []string{"C97E80", "000abc.fv", `E:\x\0001.FV`, "0", "", "/a/b/FFFF"}
	for _, in := range inputs {
		once := NormalizeHex(in)
		assert.Equal(t, once, NormalizeHex(once), "input %q", in)
	}
}

func TestValidHex(t *testing.T) {
	assert.True(t, ValidHex("C97E80"))
	assert.True(t, ValidHex("abcdef0123456789"))
	assert.False(t, ValidHex(""))
	assert.False(t, ValidHex("C97E80.fv"))
	assert.False(t, ValidHex("XYZ"))
	assert.False(t, ValidHex("12 34"))
}

// ----
// PhysicalPath / LogicalPath
// ----

func TestPhysicalPath(t *testing.T) {
	assert.Equal(t, "/vault/00000000C97E80", PhysicalPath("/vault", "C97E80"))
	assert.Equal(t, "/vault/00000000C97E80", PhysicalPath("/vault///", "c97e80.fv"))
	assert.Equal(t, `E:\vaults\cache\00000000C97E80`, PhysicalPath(`E:\vaults\cache\`, "C97E80"))
	assert.Equal(t, "/00000000000001", PhysicalPath("/", "1"))
	assert.Empty(t, PhysicalPath("", "C97E80"))
	assert.Empty(t, PhysicalPath("/vault", ""))
}

func TestPhysicalPath_RoundTrip(t *testing.T) {
	roots := []string{"/vault", `E:\PTC\vault`, "relative/dir"}
	hexes := []string{"0", "1", "C97E80", "abcdef", "00FF", "123456789ABCDE", "FFFFFFFFFFFFFFFF"}

	for _, r := range roots {
		for _, h := range hexes {
			assert.Equal(t, NormalizeHex(h), NormalizeHex(PhysicalPath(r, h)), "root %q hex %q", r, h)
		}
	}
}

func TestLogicalPath(t *testing.T) {
	assert.Equal(t, "/vault/C97E80.fv", LogicalPath("/vault", "C97E80", ".fv", 0))
	assert.Equal(t, "/vault/C97E80.fv", LogicalPath("/vault", "C97E80", "fv", 0))
	assert.Equal(t, "/vault/0000C97E80", LogicalPath("/vault", "C97E80", "", 10))
	assert.Equal(t, "/vault/00000000C97E80", LogicalPath("/vault", "00C97E80.fv", "", 14))
	assert.Empty(t, LogicalPath("/vault", " ", ".fv", 14))
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "C97E80.fv", Base(`E:\vaults\cache\C97E80.fv`))
	assert.Equal(t, `E:\vaults\cache`, Dir(`E:\vaults\cache\C97E80.fv`))
	assert.Equal(t, "/srv", Dir("/srv/file"))
	assert.Equal(t, "/", Dir("/file"))
	assert.Empty(t, Dir("file"))
}
