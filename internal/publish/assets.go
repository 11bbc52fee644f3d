package publish

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"
)

// copyAssets copies the static directories into the publish root and the
// shared directories under each site prefix. It returns the number of files
// copied. Failures are logged and skipped.
func (p *Pipeline) copyAssets(ctx context.Context, out string, sites map[string]bool) int {
	root := p.cfg.Site.Root
	excluded := map[string]bool{
		filepath.Clean(p.cfg.Site.PagesDir):    true,
		filepath.Clean(p.cfg.Editor.RuntimeDir): true,
		filepath.Clean(p.cfg.Publish.Root):     true,
	}

	copied := 0
	for _, dir := range p.cfg.Assets.StaticDirs {
		if excluded[filepath.Clean(dir)] {
			continue
		}
		n, err := copyTree(filepath.Join(root, dir), filepath.Join(out, dir))
		if err != nil {
			p.logger.Warn(ctx, err, "static directory copy failed", "dir", dir)
		}
		copied += n
	}

	names := make([]string, 0, len(sites))
	for site := range sites {
		names = append(names, site)
	}
	sort.Strings(names)
	for _, site := range names {
		for _, dir := range p.cfg.Assets.SharedDirs {
			n, err := copyTree(filepath.Join(root, dir), filepath.Join(out, site, dir))
			if err != nil {
				p.logger.Warn(ctx, err, "shared directory copy failed", "dir", dir, "site", site)
			}
			copied += n
		}
	}
	return copied
}

// copyTree mirrors src into dst. A missing src copies nothing.
func copyTree(src, dst string) (int, error) {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, nil
	}

	copied := 0
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := atomic.WriteFile(target, f); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}
