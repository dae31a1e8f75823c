package renderer

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// DirectoryRenderer mirrors a source directory. The entry URL is a mount
// point such as "/static/**"; its literal prefix decides the destination.
type DirectoryRenderer struct {
	Tag string
	// Dir is resolved against the content root.
	Dir string
}

// NewStaticFilesRenderer mounts the static directory.
func NewStaticFilesRenderer(cfg *config.Config) *DirectoryRenderer {
	return &DirectoryRenderer{Tag: sitemap.StaticFilesRenderer, Dir: cfg.Content.Static}
}

// NewRootDirRenderer mounts the root directory at the site root.
func NewRootDirRenderer(cfg *config.Config) *DirectoryRenderer {
	return &DirectoryRenderer{Tag: sitemap.RootDirRenderer, Dir: cfg.Content.RootFiles}
}

// Name returns the renderer tag.
func (d *DirectoryRenderer) Name() string { return d.Tag }

// MountPrefix returns the literal part of a mount URL ("/static/**" is
// mounted at "/static/").
func MountPrefix(url string) string {
	i := strings.IndexAny(url, "*?[")
	if i < 0 {
		if strings.HasSuffix(url, "/") {
			return url
		}
		return url + "/"
	}
	return url[:strings.LastIndex(url[:i], "/")+1]
}

// Render copies the directory tree for every mount entry.
func (d *DirectoryRenderer) Render(ctx context.Context, cfg *config.Config, _ *site.Site, m *sitemap.Map, dest string) error {
	src := cfg.Path(d.Dir)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	for _, e := range m.Entries() {
		if e.Renderer != d.Tag {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(MountPrefix(e.URL), "/")))
		if err := copyTree(src, target); err != nil {
			return renderError(e, "failed to copy directory", err)
		}
	}
	return nil
}

// Serve answers with the file below Dir that the request path points at.
func (d *DirectoryRenderer) Serve(w http.ResponseWriter, r *http.Request, e *sitemap.Entry, cfg *config.Config, _ *site.Site, _ *sitemap.Map) error {
	rel := strings.TrimPrefix(r.URL.Path, MountPrefix(e.URL))
	file := filepath.Join(cfg.Path(d.Dir), filepath.FromSlash(path.Clean("/"+rel)))

	f, err := os.Open(file) // #nosec G304 -- path is cleaned and rooted in the mount directory
	if err != nil {
		return ferrors.NotFoundError("file not found").WithContext("path", r.URL.Path).Build()
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return ferrors.NotFoundError("file not found").WithContext("path", r.URL.Path).Build()
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- walking the mount directory
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst) // #nosec G304 -- target is below the build location
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
