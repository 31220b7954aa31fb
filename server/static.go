package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mel2oo/go-httpwire/wire"
)

// maxFilePath bounds the assembled filesystem path for a request.
const maxFilePath = 4096

type mimetype struct {
	glob        string
	contentType string
}

var mimetypes = []mimetype{
	{"*.html", "text/html"},
	{"*.txt", "text/plain"},
}

// lookupMimetype returns the Content-Type for a file path, or "" when the
// type is unknown.
func lookupMimetype(path string) string {
	base := filepath.Base(path)
	for _, m := range mimetypes {
		if ok, _ := filepath.Match(m.glob, base); ok {
			return m.contentType
		}
	}
	return ""
}

// Static serves files and directory listings from a filesystem root.
// Request paths are resolved against the root and verified, after symlink
// and dot-segment resolution, to still fall inside it.
type Static struct {
	root string

	// Fully resolved root used for the containment check.
	realRoot string

	log *zap.Logger
}

// NewStatic returns a handler serving the tree rooted at root. A nil logger
// defaults to a no-op one.
func NewStatic(root string, log *zap.Logger) (*Static, error) {
	if log == nil {
		log = zap.NewNop()
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}
	realRoot, err = filepath.Abs(realRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve root %s", root)
	}

	return &Static{
		root:     root,
		realRoot: realRoot,
		log:      log,
	}, nil
}

// Add registers the handler on s for GET requests under the given prefix.
func (ss *Static) Add(s *Server, prefix string) {
	s.Handle("GET", prefix, ss)
}

var _ Handler = (*Static)(nil)

func (ss *Static) Serve(w *ResponseWriter, req *Request) error {
	if err := req.DrainHeaders(); err != nil {
		return err
	}

	path, err := ss.lookup(req.Path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return statusFromFSError(err, path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return statusFromFSError(err, path)
	}

	ss.log.Info("serving",
		zap.String("root", ss.root),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)

	switch {
	case info.Mode().IsRegular():
		return ss.serveFile(w, file, info)
	case info.IsDir():
		return ss.serveDir(w, file, req.Path)
	default:
		return wire.Statusf(wire.StatusNotFound, "not a file: %s", req.Path)
	}
}

// lookup resolves the request path against the root and verifies the result
// still lives inside it. A path that escapes after canonicalization is
// answered with 403, not served.
func (ss *Static) lookup(reqPath string) (string, error) {
	if !strings.HasPrefix(reqPath, "/") {
		return "", wire.Statusf(wire.StatusBadRequest, "path without leading /: %s", reqPath)
	}

	candidate := ss.root + reqPath
	if len(candidate) > maxFilePath {
		return "", wire.Statusf(wire.StatusRequestURITooLong, "path too long: %d", len(candidate))
	}

	resolved, err := filepath.EvalSymlinks(filepath.Clean(candidate))
	if err != nil {
		return "", statusFromFSError(err, candidate)
	}

	if resolved != ss.realRoot && !strings.HasPrefix(resolved, ss.realRoot+string(filepath.Separator)) {
		ss.log.Warn("path outside of root", zap.String("path", candidate))
		return "", wire.Statusf(wire.StatusForbidden, "path outside of root: %s", reqPath)
	}

	return resolved, nil
}

func (ss *Static) serveFile(w *ResponseWriter, file *os.File, info fs.FileInfo) error {
	if err := w.WriteResponse(wire.StatusOK, ""); err != nil {
		return err
	}
	if contentType := lookupMimetype(file.Name()); contentType != "" {
		if err := w.WriteHeader("Content-Type", "%s", contentType); err != nil {
			return err
		}
	}
	return w.WriteFile(file, info.Size())
}

// serveDir sends an HTML listing. A directory requested without a trailing
// slash is redirected to the slashed form first, so relative links resolve.
func (ss *Static) serveDir(w *ResponseWriter, dir *os.File, reqPath string) error {
	if !strings.HasSuffix(reqPath, "/") {
		return w.Redirect("%s/", reqPath)
	}

	entries, err := dir.Readdirnames(0)
	if err != nil {
		return errors.Wrapf(err, "read dir %s", reqPath)
	}

	if err := w.WriteResponse(wire.StatusOK, ""); err != nil {
		return err
	}
	if err := w.WriteHeader("Content-Type", "text/html"); err != nil {
		return err
	}

	// The first Printf finishes the header section.
	if err := w.Printf("<html><head><title>Index of %s</title></head>\n", reqPath); err != nil {
		return err
	}
	if err := w.Printf("<body><h1>Index of %s</h1><ul>\n", reqPath); err != nil {
		return err
	}
	if reqPath != "/" {
		if err := w.Printf("<li><a href=\"..\">..</a></li>\n"); err != nil {
			return err
		}
	}

	for _, name := range entries {
		if strings.HasPrefix(name, ".") {
			continue
		}
		suffix := ""
		if info, err := os.Stat(filepath.Join(dir.Name(), name)); err == nil && info.IsDir() {
			suffix = "/"
		}
		if err := w.Printf("\t<li><a href=\"%s%s\">%s</a></li>\n", name, suffix, name); err != nil {
			return err
		}
	}

	if err := w.Printf("</ul></body>\n"); err != nil {
		return err
	}
	return w.Printf("</html>\n")
}

// statusFromFSError maps a filesystem error onto the most sensible response
// status.
func statusFromFSError(err error, path string) error {
	var status wire.Status
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		status = wire.StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		status = wire.StatusForbidden
	case errors.Is(err, syscall.ENAMETOOLONG):
		status = wire.StatusRequestURITooLong
	case errors.Is(err, syscall.EISDIR):
		status = wire.StatusMethodNotAllowed
	default:
		return errors.Wrapf(err, "lookup %s", path)
	}
	return wire.Statusf(status, "%s: %v", path, err)
}
