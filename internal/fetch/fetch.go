// Package fetch resolves the `[dependencies]` entries of a BUILD.qgn.toml
// declaration file into local checkouts, so internal/loader can hand the
// resolution driver a real label pointing at real sources.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/qobs-build/qgn/internal/msg"
)

// shortcuts expand a scheme prefix into the host it addresses, the set
// accepted for [dependencies] source strings.
var shortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var ErrIllegalSource = errors.New("fetch: empty or unrecognized dependency source")

// Source resolves one [dependencies] entry into a concrete git remote, or
// reports it as a plain filesystem path when no scheme matches.
func Source(spec string) (remote string, isGit bool, err error) {
	if spec == "" {
		return "", false, ErrIllegalSource
	}
	if strings.HasPrefix(spec, gitPrefix) {
		return spec[len(gitPrefix):], true, nil
	}
	for prefix, host := range shortcuts {
		if strings.HasPrefix(spec, prefix) {
			return host + spec[len(prefix):], true, nil
		}
	}
	if isURL(spec) {
		return spec, false, fmt.Errorf("fetch: archive dependency sources are not supported: %s", spec)
	}
	return spec, false, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ref is a git remote decomposed into clone URL, optional branch, and an
// optional pinned commit or tag, following the `owner/repo@branch#rev`
// convention the shortcuts above expand into.
type ref struct {
	cloneURL string
	branch   string
	rev      string
}

func parseRef(raw string) ref {
	var r ref
	head, tag, hasTag := strings.Cut(raw, "#")
	if hasTag {
		r.rev = tag
	} else {
		head = raw
	}

	base, branch, hasBranch := strings.Cut(head, "@")
	r.cloneURL = base
	if hasBranch {
		r.branch = branch
	}

	if !strings.HasSuffix(r.cloneURL, ".git") {
		r.cloneURL += ".git"
	}
	return r
}

// Dependency clones or reuses the remote named by spec into destDir,
// returning the local path the loader should treat as that dependency's
// source root. destDir must not already exist as a non-empty directory
// belonging to a different remote; Dependency does not attempt to detect
// that case beyond checking for an existing .git.
func Dependency(spec, destDir string) (string, error) {
	remote, isGit, err := Source(spec)
	if err != nil {
		return "", err
	}
	if !isGit {
		return remote, nil // plain filesystem path dependency
	}

	if _, err := os.Stat(destDir + "/.git"); err == nil {
		return destDir, nil // already fetched by a previous run in this cache
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil && !os.IsExist(err) {
		return "", err
	}

	r := parseRef(remote)
	msg.Info("fetching %s", r.cloneURL)

	opts := &git.CloneOptions{
		URL:               r.cloneURL,
		Progress:          &msg.IndentWriter{Indent: "    ", W: os.Stdout},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}
	if r.rev == "" {
		opts.Depth = 1
	}
	if r.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(r.branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainClone(destDir, opts)
	if err != nil {
		return destDir, fmt.Errorf("fetch: cloning %s: %w", r.cloneURL, err)
	}

	if r.rev != "" {
		w, err := repo.Worktree()
		if err != nil {
			return destDir, fmt.Errorf("fetch: worktree for %s: %w", r.cloneURL, err)
		}
		hash, err := repo.ResolveRevision(plumbing.Revision(r.rev))
		if err != nil {
			return destDir, fmt.Errorf("fetch: resolving %q in %s: %w", r.rev, r.cloneURL, err)
		}
		if err := w.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
			return destDir, fmt.Errorf("fetch: checking out %q in %s: %w", r.rev, r.cloneURL, err)
		}
	}

	return destDir, nil
}
