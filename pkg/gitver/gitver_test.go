package gitver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o660))

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	_, err = worktree.Add(name)
	require.NoError(t, err)

	hash, err := worktree.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "tester",
			Email: "tester@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestDescribeCommitHash(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, dir, "a.txt", "a")

	version, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, hash[:8], version)
}

func TestDescribeTag(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, dir, "a.txt", "a")

	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("0.2", head.Hash(), nil)
	require.NoError(t, err)

	version, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.2", version)
	assert.NotEqual(t, hash[:8], version)
}

func TestDescribeDirty(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, dir, "a.txt", "a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o660))

	version, err := Describe(dir)
	require.NoError(t, err)
	assert.Equal(t, hash[:8]+"-dirty", version)
}

func TestDescribeNoRepository(t *testing.T) {
	_, err := Describe(t.TempDir())
	assert.Error(t, err)
}
