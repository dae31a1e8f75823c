// Package watch delivers filesystem change events to registered handlers.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
)

// Op is the kind of change.
type Op int

const (
	Create Op = iota + 1
	Write
	Remove
	Rename
)

func (o Op) String() string {
	switch o {
	case Create:
		return "create"
	case Write:
		return "write"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a change of one path. For Rename, Path is the old name; the new
// name arrives as a separate Create.
type Event struct {
	Path string
	Op   Op
}

// Handler receives events for a watched directory.
type Handler func(Event)

// Registrar is the part of the service miners use.
type Registrar interface {
	Watch(dir string, recursive bool, h Handler) error
	Unwatch(dir string) error
}

type registration struct {
	dir       string
	recursive bool
	handler   Handler
}

// Options configures a Service.
type Options struct {
	// Root is the content root; IgnoreFile patterns are relative to it.
	Root string
	// IgnoreFile is a gitignore style file under Root. Missing files are fine.
	IgnoreFile string
	// IgnoreDirs are never reported, e.g. the build output directory.
	IgnoreDirs []string
	// AfterDispatch runs after the handlers of an event returned.
	AfterDispatch func(Event)
}

// Service multiplexes one fsnotify watcher over many registrations.
type Service struct {
	watcher    *fsnotify.Watcher
	root       string
	ignore     *ignore.GitIgnore
	ignoreDirs []string
	after      func(Event)

	mu      sync.Mutex
	regs    map[string]*registration
	pending map[string]*registration
}

// New creates a watch service. Run must be called to deliver events.
func New(opts Options) (*Service, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "create watcher").Fatal().Build()
	}
	s := &Service{
		watcher: w,
		after:   opts.AfterDispatch,
		regs:    map[string]*registration{},
		pending: map[string]*registration{},
	}
	if opts.Root != "" {
		if abs, err := filepath.Abs(opts.Root); err == nil {
			s.root = abs
		}
	}
	for _, d := range opts.IgnoreDirs {
		if abs, err := filepath.Abs(d); err == nil {
			s.ignoreDirs = append(s.ignoreDirs, abs)
		}
	}
	if opts.IgnoreFile != "" && s.root != "" {
		p := filepath.Join(s.root, opts.IgnoreFile)
		if gi, err := ignore.CompileIgnoreFile(p); err == nil {
			s.ignore = gi
			slog.Debug("Loaded watch ignore rules", logfields.Path(p))
		}
	}
	return s, nil
}

// Watch registers h for changes of dir. Recursive registrations also cover
// subdirectories created later. A missing directory stays pending: its
// nearest existing parent is watched and the registration activates once
// the directory appears.
func (s *Service) Watch(dir string, recursive bool, h Handler) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve watch dir: %w", err)
	}
	reg := &registration{dir: abs, recursive: recursive, handler: h}
	if !isDir(abs) {
		s.mu.Lock()
		s.pending[abs] = reg
		s.mu.Unlock()
		slog.Debug("Watch dir does not exist yet", logfields.Path(abs))
		s.watchAncestor(abs)
		return nil
	}
	return s.activate(reg)
}

func (s *Service) activate(reg *registration) error {
	s.mu.Lock()
	delete(s.pending, reg.dir)
	s.regs[reg.dir] = reg
	s.mu.Unlock()

	if reg.recursive {
		return s.addDirsRecursive(reg.dir)
	}
	if err := s.watcher.Add(reg.dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatch, "watch dir").WithContext("dir", reg.dir).Build()
	}
	return nil
}

// watchAncestor watches the closest existing parent of dir so its
// creation is noticed.
func (s *Service) watchAncestor(dir string) {
	for p := filepath.Dir(dir); ; p = filepath.Dir(p) {
		if isDir(p) {
			if err := s.watcher.Add(p); err != nil {
				slog.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
			}
			return
		}
		if p == filepath.Dir(p) {
			return
		}
	}
}

// resolvePending activates pending registrations whose directory now
// exists and returns Create events for files already inside them.
func (s *Service) resolvePending() []Event {
	s.mu.Lock()
	waiting := make([]*registration, 0, len(s.pending))
	for _, reg := range s.pending {
		waiting = append(waiting, reg)
	}
	s.mu.Unlock()

	var missed []Event
	for _, reg := range waiting {
		if !isDir(reg.dir) {
			s.watchAncestor(reg.dir)
			continue
		}
		if err := s.activate(reg); err != nil {
			slog.Warn("Cannot watch new directory", logfields.Path(reg.dir), logfields.Error(err))
			continue
		}
		slog.Debug("Watching new directory", logfields.Path(reg.dir))
		_ = filepath.WalkDir(reg.dir, func(p string, d os.DirEntry, err error) error {
			if err != nil || p == reg.dir {
				return nil
			}
			if d.IsDir() {
				if !reg.recursive || s.shouldIgnore(p) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.shouldIgnore(p) {
				missed = append(missed, Event{Path: p, Op: Create})
			}
			return nil
		})
	}
	return missed
}

// suspend turns the registration of a removed directory back into a
// pending one so a recreated directory is picked up again.
func (s *Service) suspend(dir string) {
	s.mu.Lock()
	reg, ok := s.regs[dir]
	if ok {
		delete(s.regs, dir)
		s.pending[dir] = reg
	}
	s.mu.Unlock()
	if ok {
		s.watchAncestor(dir)
	}
}

func (s *Service) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// Unwatch removes the registration for dir.
func (s *Service) Unwatch(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve watch dir: %w", err)
	}
	s.mu.Lock()
	reg, ok := s.regs[abs]
	delete(s.regs, abs)
	delete(s.pending, abs)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if !reg.recursive {
		_ = s.watcher.Remove(abs)
		return nil
	}
	for _, w := range s.watcher.WatchList() {
		if w == abs || strings.HasPrefix(w, abs+string(filepath.Separator)) {
			_ = s.watcher.Remove(w)
		}
	}
	return nil
}

// Run delivers events until ctx is done or the watcher is closed. Watcher
// errors are logged and the loop continues.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.dispatch(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (s *Service) Close() error {
	return s.watcher.Close()
}

func (s *Service) dispatch(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 || s.shouldIgnore(ev.Name) {
		return
	}
	if op == Remove || op == Rename {
		s.suspend(ev.Name)
	}
	var missed []Event
	if op == Create && isDir(ev.Name) {
		if s.underRecursive(ev.Name) {
			_ = s.addDirsRecursive(ev.Name)
		}
		if s.hasPending() {
			missed = s.resolvePending()
		}
	}

	slog.Debug("File change detected", logfields.Path(ev.Name), logfields.Op(op.String()))
	s.deliver(Event{Path: ev.Name, Op: op})
	for _, e := range missed {
		s.deliver(e)
	}
}

// deliver runs the handlers of e and then AfterDispatch. Events no
// registration covers, such as siblings in a parent watched for a pending
// directory, are dropped.
func (s *Service) deliver(e Event) {
	hs := s.handlersFor(e.Path)
	if len(hs) == 0 {
		return
	}
	for _, h := range hs {
		h(e)
	}
	if s.after != nil {
		s.after(e)
	}
}

func (s *Service) handlersFor(name string) []Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Handler
	parent := filepath.Dir(name)
	for _, reg := range s.regs {
		switch {
		case reg.recursive && strings.HasPrefix(name, reg.dir+string(filepath.Separator)):
			out = append(out, reg.handler)
		case !reg.recursive && parent == reg.dir:
			out = append(out, reg.handler)
		}
	}
	return out
}

func (s *Service) underRecursive(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		if reg.recursive && strings.HasPrefix(dir, reg.dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Service) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && s.shouldIgnore(path) {
				return filepath.SkipDir
			}
			if err := s.watcher.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

func (s *Service) shouldIgnore(path string) bool {
	if ShouldIgnoreName(filepath.Base(path)) {
		return true
	}
	for _, d := range s.ignoreDirs {
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	if s.ignore != nil && s.root != "" {
		if rel, err := filepath.Rel(s.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return s.ignore.MatchesPath(filepath.ToSlash(rel))
		}
	}
	return false
}

// ShouldIgnoreName reports whether a file name is a hidden, editor temp or
// OS metadata file that never triggers a rebuild.
func ShouldIgnoreName(base string) bool {
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return Create
	case op.Has(fsnotify.Write):
		return Write
	case op.Has(fsnotify.Remove):
		return Remove
	case op.Has(fsnotify.Rename):
		return Rename
	default:
		return 0
	}
}
