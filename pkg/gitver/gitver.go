// Package gitver derives an image version from the state of the git
// repository: the tag pointing at HEAD if there is one, the abbreviated
// commit hash otherwise. A worktree with local modifications gets a -dirty
// suffix either way.
package gitver

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rotisserie/eris"
)

func headTag(repo *git.Repository, head *plumbing.Reference) (string, error) {
	tags, err := repo.Tags()
	if err != nil {
		return "", eris.Wrap(err, "failed to list tags")
	}
	defer tags.Close()

	result := ""
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()

		// annotated tags point at a tag object, not the commit itself
		tagObj, err := repo.TagObject(hash)
		if err == nil {
			hash = tagObj.Target
		} else if !eris.Is(err, plumbing.ErrObjectNotFound) {
			return err
		}

		if hash == head.Hash() {
			result = ref.Name().Short()
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "failed to walk tags")
	}

	return result, nil
}

// Describe resolves the version string for the repository at or above root.
func Describe(root string) (string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", eris.Wrapf(err, "failed to open the git repository at %s", root)
	}

	head, err := repo.Head()
	if err != nil {
		return "", eris.Wrap(err, "failed to resolve HEAD")
	}

	version, err := headTag(repo, head)
	if err != nil {
		return "", err
	}

	if version == "" {
		version = head.Hash().String()[:8]
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", eris.Wrap(err, "failed to open the worktree")
	}

	status, err := worktree.Status()
	if err != nil {
		return "", eris.Wrap(err, "failed to check the worktree status")
	}

	if !status.IsClean() {
		version += "-dirty"
	}

	return version, nil
}
