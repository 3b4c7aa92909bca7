package runspec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/dollarvm/lang/bytecode"
)

func TestReadWire(t *testing.T) {
	d := &bytecode.Dict{
		Keys: []any{"modules", "files", "conclusion"},
		Values: []any{
			[]any{"a", "b"},
			[]any{"x.dvc", "y.dvc"},
			[]byte{1, 2, 3},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, bytecode.WriteValue(&buf, d))

	rs, err := ReadWire(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, rs.Modules)
	require.Equal(t, []string{"x.dvc", "y.dvc"}, rs.Files)
	require.Equal(t, []byte{1, 2, 3}, rs.Conclusion)
}

func TestReadYAML(t *testing.T) {
	doc := `
modules:
  - a
  - b
files:
  - x.dvc
  - y.dvc
`
	rs, err := ReadYAML(strings.NewReader(doc), "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, rs.Modules)
	require.Equal(t, []string{"x.dvc", "y.dvc"}, rs.Files)
	require.Nil(t, rs.Conclusion)
}
