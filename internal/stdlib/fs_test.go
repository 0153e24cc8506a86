package stdlib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	mustCall(t, "write_file", path, "hello\nworld")
	assert.Equal(t, "hello\nworld", mustCall(t, "read_file", path))
}

func TestReadMissingFile(t *testing.T) {
	f := callFault(t, "read_file", filepath.Join(t.TempDir(), "absent"))
	assert.Contains(t, f.Message, "read_file")
}

func TestFsArgumentTypes(t *testing.T) {
	f := callFault(t, "read_file", 1.0)
	assert.Equal(t, "read_file: expected string, got number", f.Message)

	f = callFault(t, "write_file", "p", 1.0)
	assert.Equal(t, "write_file: path and contents must be strings", f.Message)
}
