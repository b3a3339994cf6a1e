package scorm

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// Blacklist names top-level archive entries that are never package
// content.
var Blacklist = []string{".DS_Store", "__MACOSX"}

func blacklisted(name string) bool {
	for _, b := range Blacklist {
		if name == b {
			return true
		}
	}
	return false
}

// FilterTopLevel drops blacklisted names, keeping the order of the rest.
func FilterTopLevel(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !blacklisted(n) {
			out = append(out, n)
		}
	}
	return out
}

// selectContentRoot picks the directory to publish from an extracted
// package. When filtering leaves a single directory the package wraps its
// content in that folder and the folder is the root. Anything else is a
// flat package, whose filtered scratch directory is the root.
func selectContentRoot(scratch string) (string, error) {
	entries, err := os.ReadDir(scratch)
	if err != nil {
		return "", xerrors.Wrap(err, "list extracted package")
	}
	names := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		isDir[e.Name()] = e.IsDir()
	}
	kept := FilterTopLevel(names)
	if len(kept) == 0 {
		return "", invalid("package has no content outside %v", Blacklist)
	}
	if len(kept) == 1 && isDir[kept[0]] {
		return filepath.Join(scratch, kept[0]), nil
	}
	for _, n := range names {
		if blacklisted(n) {
			if err := os.RemoveAll(filepath.Join(scratch, n)); err != nil {
				return "", xerrors.Wrapf(err, "drop %s", n)
			}
		}
	}
	return scratch, nil
}

// replaceTree moves src to target. An existing target is first renamed
// aside so target is never missing when the move fails; the aside path is
// returned for the caller to remove ("" when there was no previous tree).
func replaceTree(src, target string) (aside string, err error) {
	if _, err := os.Lstat(target); err == nil {
		aside = filepath.Join(filepath.Dir(target), ".replaced-"+uuid.NewString())
		if err := os.Rename(target, aside); err != nil {
			return "", xerrors.Wrapf(err, "move %s aside", target)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", xerrors.Wrapf(err, "stat %s", target)
	}

	if err := os.Rename(src, target); err != nil {
		if aside != "" {
			_ = os.Rename(aside, target)
		}
		return "", xerrors.Wrapf(err, "move %s into place", src)
	}
	return aside, nil
}
