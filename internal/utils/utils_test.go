package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestURIRoundTrip(t *testing.T) {
	require.Equal(t, "/tmp/my app/a.php", UriToPath("file:///tmp/my%20app/a.php"))
	require.Equal(t, "file:///tmp/my%20app/a.php", PathToURI("/tmp/my app/a.php"))
	require.Equal(t, "relative.php", UriToPath("relative.php"))
}

func TestAppendUnique(t *testing.T) {
	s := AppendUnique(nil, "a")
	s = AppendUnique(s, "b")
	s = AppendUnique(s, "a")
	require.Equal(t, []string{"a", "b"}, s)
}

func TestLineAndUTF16Column(t *testing.T) {
	text := "<?php\n$é = '😀';\n$x"
	line, col := LineAndUTF16Column(text, len("<?php\n$é = '😀'"))
	require.Equal(t, 1, line)
	require.Equal(t, 9, col)

	line, col = LineAndUTF16Column(text, len(text)+10)
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)
}
