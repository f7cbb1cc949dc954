package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "go-leaf-inspector/internal/errors"
	"go-leaf-inspector/internal/preprocess"
)

// ImageFetcher resolves an image reference to a decoded image. Decode
// failures are reported as image_decode errors, transport failures as
// network errors.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (image.Image, error)
}

// Scheme returns the lower-cased scheme of ref, "" for plain paths.
// Windows drive letters are not treated as schemes.
func Scheme(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || len(u.Scheme) < 2 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Filename returns the base name recorded for ref.
func Filename(ref string) string {
	switch Scheme(ref) {
	case "":
		return filepath.Base(ref)
	default:
		u, err := url.Parse(ref)
		if err != nil || u.Path == "" || u.Path == "/" {
			return ref
		}
		return path.Base(u.Path)
	}
}

// FileFetcher reads images from the local file system. When Root is set,
// relative paths resolve against it and nothing outside it is served.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("request cancelled", err)
	}
	p := ref
	if Scheme(ref) == "file" {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid file URL", err)
		}
		p = u.Path
	}
	if f.Root != "" {
		resolved, err := f.resolve(p)
		if err != nil {
			return nil, err
		}
		p = resolved
	}

	file, err := os.Open(p)
	if err != nil {
		return nil, apperrors.NewImageDecodeError("cannot open image "+p, err)
	}
	defer file.Close()
	return preprocess.Decode(file)
}

// resolve maps p into Root, following symlinks, and rejects anything that
// escapes it.
func (f FileFetcher) resolve(p string) (string, error) {
	root, err := filepath.Abs(f.Root)
	if err != nil {
		return "", apperrors.NewInternalError("invalid image root", err)
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	} else if d, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		p = filepath.Join(d, filepath.Base(p))
	}

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.NewValidationError("image source outside the image root", err)
	}
	return p, nil
}

// Router dispatches references to the fetcher registered for their scheme.
type Router struct {
	fetchers map[string]ImageFetcher
}

// NewRouter creates a router that serves any local path and file:// URL.
func NewRouter() *Router {
	r := NewRemoteRouter()
	r.ServeLocal("")
	return r
}

// NewRemoteRouter creates a router without local file access.
func NewRemoteRouter() *Router {
	return &Router{fetchers: make(map[string]ImageFetcher)}
}

// ServeLocal resolves plain paths and file:// URLs, confined to root unless
// root is empty.
func (r *Router) ServeLocal(root string) {
	r.Register("", FileFetcher{Root: root})
	r.Register("file", FileFetcher{Root: root})
}

// Register makes f handle references with the given scheme.
func (r *Router) Register(scheme string, f ImageFetcher) {
	r.fetchers[strings.ToLower(scheme)] = f
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.fetchers))
	for s := range r.fetchers {
		out = append(out, s)
	}
	return out
}

func (r *Router) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	scheme := Scheme(ref)
	f, ok := r.fetchers[scheme]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported image source scheme %q", scheme), nil)
	}
	return f.FetchImage(ctx, ref)
}
