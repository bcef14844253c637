package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempNameIsUniquePerCall(t *testing.T) {
	a := NewTempName("/tmp", "rcs")
	b := NewTempName("/tmp", "rcs")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "/tmp/rcs-")
}

func TestRegisterReleaseRemovesRealFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	r := &Registry{}
	sff := r.Register(path, Real)
	r.Release(sff)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, NotMade, sff.Disposition)
}

func TestReleaseNotMadeDispositionSkipsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	r := &Registry{}
	sff := r.Register(path, NotMade)
	r.Release(sff)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReleaseAllRemovesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a")
	pathB := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(pathA, nil, 0644))
	require.NoError(t, os.WriteFile(pathB, nil, 0644))

	r := &Registry{}
	r.Register(pathA, Real)
	r.Register(pathB, Real)

	r.ReleaseAll()
	_, errA := os.Stat(pathA)
	_, errB := os.Stat(pathB)
	assert.True(t, os.IsNotExist(errA))
	assert.True(t, os.IsNotExist(errB))
}
