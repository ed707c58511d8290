// Package gitrepo wraps the go-git operations the archiver and differ need
// on the per-organization settings repository: creation, whole-tree
// commits, history listing and name-status diffs between two commits.
package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// InitFile is the placeholder staged into a freshly created repository so
// its initial commit has content.
const InitFile = "repo_init"

// CommitInfo is one entry of the repository history.
type CommitInfo struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}

// Changes partitions the files differing between two commits by what
// happened to them.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// All returns every changed path, added then modified then deleted.
func (c Changes) All() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified)+len(c.Deleted))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	out = append(out, c.Deleted...)
	return out
}

// Empty reports whether no files changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Repo is the interface the archiver and differ operate the settings
// repository through.
type Repo interface {
	// Path is the working tree directory.
	Path() string

	// CommitAll stages the entire working tree and commits it. A clean
	// tree returns committed=false without error.
	CommitAll(message string) (hash string, committed bool, err error)

	// Log returns up to limit commits, newest first. limit <= 0 returns
	// the full history.
	Log(limit int) ([]CommitInfo, error)

	// Resolve turns a revision expression (hash prefix, HEAD, HEAD~1)
	// into a full commit hash.
	Resolve(rev string) (string, error)

	// CommitTime is the author timestamp of a revision.
	CommitTime(rev string) (time.Time, error)

	// DiffNameStatus lists the files differing between two revisions,
	// with from the older and to the newer commit.
	DiffNameStatus(from, to string) (Changes, error)
}

type localRepo struct {
	repo *gogit.Repository
	path string

	userName  string
	userEmail string
}

// Ensure opens the repository at path, initializing a fresh one with an
// initial commit when none exists yet.
func Ensure(path, userName, userEmail string) (Repo, error) {
	r := &localRepo{path: path, userName: userName, userEmail: userEmail}

	repo, err := gogit.PlainOpen(path)
	if err == nil {
		r.repo = repo
		return r, nil
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("failed to open settings repository: %w", err)
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	repo, err = gogit.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings repository: %w", err)
	}
	r.repo = repo

	placeholder := filepath.Join(path, InitFile)
	if err := os.WriteFile(placeholder, []byte("Repository initialized by meraki-git-archiver\n"), 0640); err != nil {
		return nil, fmt.Errorf("failed to write init placeholder: %w", err)
	}
	if _, _, err := r.CommitAll("Initial commit"); err != nil {
		return nil, err
	}
	return r, nil
}

// Open opens an existing repository without creating one. The differ uses
// this so a typo in the organization id fails instead of leaving an empty
// repo behind.
func Open(path string) (Repo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings repository at %s: %w", path, err)
	}
	return &localRepo{repo: repo, path: path}, nil
}

func (r *localRepo) Path() string {
	return r.path
}

func (r *localRepo) CommitAll(message string) (string, bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", false, fmt.Errorf("failed to stage settings tree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", false, fmt.Errorf("failed to read worktree status: %w", err)
	}
	if status.IsClean() {
		return "", false, nil
	}

	sig := &object.Signature{
		Name:  r.userName,
		Email: r.userEmail,
		When:  time.Now(),
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: sig})
	if err != nil {
		return "", false, fmt.Errorf("failed to commit settings: %w", err)
	}
	return hash.String(), true, nil
}

func (r *localRepo) Log(limit int) ([]CommitInfo, error) {
	iter, err := r.repo.Log(&gogit.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return errStopIteration
		}
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return commits, nil
}

var errStopIteration = errors.New("stop iteration")

func (r *localRepo) Resolve(rev string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	return hash.String(), nil
}

func (r *localRepo) CommitTime(rev string) (time.Time, error) {
	commit, err := r.commitAt(rev)
	if err != nil {
		return time.Time{}, err
	}
	return commit.Author.When, nil
}

func (r *localRepo) DiffNameStatus(from, to string) (Changes, error) {
	fromTree, err := r.treeAt(from)
	if err != nil {
		return Changes{}, err
	}
	toTree, err := r.treeAt(to)
	if err != nil {
		return Changes{}, err
	}

	diff, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return Changes{}, fmt.Errorf("failed to diff commits: %w", err)
	}

	var changes Changes
	for _, change := range diff {
		action, err := change.Action()
		if err != nil {
			return Changes{}, fmt.Errorf("failed to classify change: %w", err)
		}
		switch action {
		case merkletrie.Insert:
			changes.Added = append(changes.Added, change.To.Name)
		case merkletrie.Delete:
			changes.Deleted = append(changes.Deleted, change.From.Name)
		case merkletrie.Modify:
			changes.Modified = append(changes.Modified, change.To.Name)
		}
	}
	return changes, nil
}

func (r *localRepo) commitAt(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	return commit, nil
}

func (r *localRepo) treeAt(rev string) (*object.Tree, error) {
	commit, err := r.commitAt(rev)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree for %s: %w", rev, err)
	}
	return tree, nil
}
