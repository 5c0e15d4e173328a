package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prestamos/deployer/internal/core/domain"
)

type fakeTools struct {
	engineErr  error
	composeErr error
	calls      []string
}

func (f *fakeTools) CheckEngine(context.Context) error {
	f.calls = append(f.calls, "engine")
	return f.engineErr
}

func (f *fakeTools) CheckCompose(context.Context) error {
	f.calls = append(f.calls, "compose")
	return f.composeErr
}

var requiredFiles = []string{"app.py", "requirements.txt", "Dockerfile", "docker-compose.yml"}

func projectDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}
	return dir
}

func newChecker(tools Toolchain, dir string) *Checker {
	return NewChecker(tools, Settings{Dir: dir, RequiredFiles: requiredFiles, DataDir: "data"}, nil)
}

func TestRun_AllPresent(t *testing.T) {
	dir := projectDir(t, requiredFiles...)
	tools := &fakeTools{}

	require.NoError(t, newChecker(tools, dir).Run(context.Background()))
	assert.Equal(t, []string{"engine", "compose"}, tools.calls)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestRun_DataDirAlreadyExists(t *testing.T) {
	dir := projectDir(t, requiredFiles...)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "keep"), []byte("1"), 0o644))

	require.NoError(t, newChecker(&fakeTools{}, dir).Run(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "data", "keep"))
}

func TestRun_EngineUnavailable(t *testing.T) {
	dir := projectDir(t, requiredFiles...)
	tools := &fakeTools{engineErr: fmt.Errorf("%w: exit 1", domain.ErrEngineUnavailable)}

	err := newChecker(tools, dir).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	assert.Equal(t, []string{"engine"}, tools.calls)
	assert.NoDirExists(t, filepath.Join(dir, "data"))
}

func TestRun_ComposeUnavailable(t *testing.T) {
	dir := projectDir(t, requiredFiles...)
	tools := &fakeTools{composeErr: fmt.Errorf("%w: not found", domain.ErrComposeUnavailable)}

	err := newChecker(tools, dir).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrComposeUnavailable)
	assert.NoDirExists(t, filepath.Join(dir, "data"))
}

func TestRun_MissingFile(t *testing.T) {
	for _, missing := range requiredFiles {
		t.Run(missing, func(t *testing.T) {
			var present []string
			for _, f := range requiredFiles {
				if f != missing {
					present = append(present, f)
				}
			}
			dir := projectDir(t, present...)

			err := newChecker(&fakeTools{}, dir).Run(context.Background())
			require.ErrorIs(t, err, domain.ErrRequiredFileMissing)

			var mf *domain.MissingFileError
			require.True(t, errors.As(err, &mf))
			assert.Equal(t, missing, mf.Path)
			assert.NoDirExists(t, filepath.Join(dir, "data"))
		})
	}
}

func TestRun_FirstMissingFileReported(t *testing.T) {
	dir := projectDir(t, "app.py")

	err := newChecker(&fakeTools{}, dir).Run(context.Background())
	var mf *domain.MissingFileError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "requirements.txt", mf.Path)
}

func TestRun_RequiredFileIsDirectory(t *testing.T) {
	dir := projectDir(t, "app.py", "requirements.txt", "docker-compose.yml")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Dockerfile"), 0o755))

	err := newChecker(&fakeTools{}, dir).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrRequiredFileMissing)
}

func TestRun_DataPathIsFile(t *testing.T) {
	dir := projectDir(t, append([]string{"data"}, requiredFiles...)...)

	err := newChecker(&fakeTools{}, dir).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
