package copier

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"buildcopy/internal/errors"
	"buildcopy/internal/log"

	"github.com/spf13/afero"
)

// copyTree copies the directory src into dst, overwriting what is already
// there. A destination nested inside src is never descended into.
func (p *pass) copyTree(ctx context.Context, src, dst string) error {
	fs := p.engine.fs
	src = p.engine.followLink(src)
	return afero.Walk(fs, src, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if errors.Classify(walkErr) == errors.ClassMissingSource && path != src {
				// Removed while walking
				return nil
			}
			return errors.NewFileError("cannot read source", path, errors.FileOperationFailed, walkErr)
		}

		if info.IsDir() && path != src && within(path, dst) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.NewFileError("invalid source path", path, errors.InvalidPath, err)
		}
		return p.copyEntry(ctx, path, filepath.Join(dst, rel), info)
	})
}

// copyEntry copies a single directory, regular file or symlink. Directories
// are created but not descended into.
func (p *pass) copyEntry(ctx context.Context, src, dst string, info os.FileInfo) error {
	fs := p.engine.fs

	switch {
	case info.IsDir():
		if existing, err := fs.Stat(dst); err == nil && !existing.IsDir() {
			if err := fs.Remove(dst); err != nil {
				return errors.NewFileError("cannot replace file with directory", dst, errors.FileOperationFailed, err)
			}
		}
		if err := fs.MkdirAll(dst, info.Mode().Perm()|0700); err != nil {
			return errors.NewFileError("cannot create directory", dst, errors.FileCreateFailed, err)
		}
		return nil

	case info.Mode()&os.ModeSymlink != 0:
		return p.copySymlink(ctx, src, dst)

	case info.Mode().IsRegular():
		return p.copyFile(src, dst, info.Mode().Perm())

	default:
		log.LogWithFields(log.F("path", src), log.F("mode", info.Mode().String())).Debug("Skipping special file")
		return nil
	}
}

// copyFile stages the content next to dst under a name unique to this pass
// and renames it into place.
func (p *pass) copyFile(src, dst string, perm os.FileMode) (err error) {
	fs := p.engine.fs

	if existing, statErr := fs.Stat(dst); statErr == nil && existing.IsDir() {
		if err := fs.RemoveAll(dst); err != nil {
			return errors.NewFileError("cannot replace directory with file", dst, errors.FileOperationFailed, err)
		}
	}

	in, err := fs.Open(src)
	if err != nil {
		return errors.NewFileError("cannot open source file", src, errors.FileOperationFailed, err)
	}
	defer in.Close()

	staged := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+"."+p.id+".tmp")
	out, err := fs.OpenFile(staged, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm|0200)
	if err != nil {
		return errors.NewFileError("cannot create file", staged, errors.FileCreateFailed, err)
	}
	defer func() {
		if err != nil {
			_ = fs.Remove(staged)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return errors.NewFileError("cannot copy file", src, errors.FileOperationFailed, err)
	}
	if err = out.Close(); err != nil {
		return errors.NewFileError("cannot write file", staged, errors.FileOperationFailed, err)
	}
	if err = fs.Rename(staged, dst); err != nil {
		return errors.NewFileError("cannot move file into place", dst, errors.KindFor(errors.FileOperationFailed, err), err)
	}
	if perm&0200 == 0 {
		_ = fs.Chmod(dst, perm)
	}
	return nil
}

// copySymlink recreates the link at dst when the filesystem supports links;
// otherwise the link target's content is copied.
func (p *pass) copySymlink(ctx context.Context, src, dst string) error {
	fs := p.engine.fs

	linker, ok := fs.(afero.Symlinker)
	if !ok {
		info, err := fs.Stat(src)
		if err != nil {
			return errors.NewFileError("cannot resolve link", src, errors.FileOperationFailed, err)
		}
		if !info.IsDir() {
			return p.copyFile(src, dst, info.Mode().Perm())
		}
		// Walking src itself would only see the link again
		if err := p.copyEntry(ctx, src, dst, info); err != nil {
			return err
		}
		children, err := afero.ReadDir(fs, src)
		if err != nil {
			return errors.NewFileError("cannot read linked directory", src, errors.FileOperationFailed, err)
		}
		for _, child := range children {
			if err := p.copyTree(ctx, filepath.Join(src, child.Name()), filepath.Join(dst, child.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	target, err := linker.ReadlinkIfPossible(src)
	if err != nil {
		return errors.NewFileError("cannot read link", src, errors.FileOperationFailed, err)
	}
	if err := fs.RemoveAll(dst); err != nil {
		return errors.NewFileError("cannot replace link", dst, errors.FileOperationFailed, err)
	}
	if err := linker.SymlinkIfPossible(target, dst); err != nil {
		return errors.NewFileError("cannot create link", dst, errors.FileOperationFailed, err)
	}
	return nil
}

// followLink returns the target of path when path is a symlink the
// filesystem can read, and path itself otherwise.
func (e *Engine) followLink(path string) string {
	lstater, ok := e.fs.(afero.Lstater)
	if !ok {
		return path
	}
	info, lstatCalled, err := lstater.LstatIfPossible(path)
	if err != nil || !lstatCalled || info.Mode()&os.ModeSymlink == 0 {
		return path
	}
	reader, ok := e.fs.(afero.LinkReader)
	if !ok {
		return path
	}
	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return path
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target
}
