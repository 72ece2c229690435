package testfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

/*
CreateTempFileWithContent creates file "name" with the provided content in the
temporary directory of the test and returns full path of the file. The
directory is removed when the test finishes.
*/
func CreateTempFileWithContent(t testing.TB, name string, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0600), "failed to create test file '%s'", filePath)
	return filePath
}
