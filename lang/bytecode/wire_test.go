package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWireRoundTrip(t *testing.T) {
	cases := []any{
		int32(42),
		int32(-7),
		3.14159,
		"hello, world",
		[]byte{0x01, 0x02, 0xff},
		[]any{int32(1), "two", 3.0},
		&Dict{Keys: []any{"a", "b"}, Values: []any{int32(1), int32(2)}},
		true,
		false,
		nil,
	}

	for _, c := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteValue(&buf, c))
		got, err := ReadValue(byteReader(&buf))
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestCodeRoundTrip(t *testing.T) {
	c := &Code{
		ModuleName: "mymod",
		FName:      "my.dv",
		Instr:      []byte{byte(CONST), 0, 0, 0, 0},
		Consts:     []any{int32(1)},
		LineNoTab:  []byte{5, 1},
	}

	var buf bytes.Buffer
	require.NoError(t, c.WriteTo(&buf))

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	require.Equal(t, c.ModuleName, got.ModuleName)
	require.Equal(t, c.FName, got.FName)
	require.Equal(t, c.Instr, got.Instr)
	require.Equal(t, c.Consts, got.Consts)
	require.Equal(t, c.LineNoTab, got.LineNoTab)
}

func TestLineForPosition(t *testing.T) {
	c := &Code{LineNoTab: []byte{5, 1, 10, 2}}
	require.Equal(t, 0, c.LineForPosition(0))
	require.Equal(t, 1, c.LineForPosition(5))
	require.Equal(t, 3, c.LineForPosition(15))
}
