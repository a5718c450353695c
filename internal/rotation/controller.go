package rotation

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	apperrors "github.com/jittakal/logship/internal/errors"
	"github.com/jittakal/logship/pkg/event"
	"github.com/jittakal/logship/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ io.WriteCloser = (*Controller)(nil)

// Config holds rotation settings. MaxFileSize is in bytes; MaxFiles counts the
// current file and disables pruning when not positive.
type Config struct {
	Directory   string
	Prefix      string
	Extension   string
	MaxFileSize int64
	MaxFiles    int
	Naming      Naming

	// Policy adds rotation triggers beyond size, such as record count or file age.
	Policy storage.RotationPolicy
}

// NotificationKind tags a rotation notification.
type NotificationKind int

const (
	// Rotated reports an archived file and the fresh current file.
	Rotated NotificationKind = iota
	// Pruned reports archives deleted to honor MaxFiles.
	Pruned
	// RotateFailed reports a rotation that will be retried on the next size check.
	RotateFailed
)

func (k NotificationKind) String() string {
	switch k {
	case Rotated:
		return "rotated"
	case Pruned:
		return "pruned"
	case RotateFailed:
		return "rotate_failed"
	default:
		return "unknown"
	}
}

// Notification describes a rotation event.
type Notification struct {
	Kind         NotificationKind
	ArchivedPath string
	NewPath      string
	Pruned       []string
	Err          error
}

// Observer receives rotation notifications on the appending goroutine.
type Observer interface {
	Notify(n Notification)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(n Notification)

// Notify calls f(n).
func (f ObserverFunc) Notify(n Notification) {
	f(n)
}

type multiObserver []Observer

func (m multiObserver) Notify(n Notification) {
	for _, o := range m {
		o.Notify(n)
	}
}

// Observers fans a notification out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// Controller writes to a current log file and rotates it by size.
type Controller struct {
	cfg      Config
	ext      string
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	file     *os.File
	size     int64
	stats    event.FileStats
	archives []archive
	nextSeq  uint64
	closed   bool
}

// New creates the directory if needed, archives a non-empty current file left
// by a previous run, and opens a fresh current file.
func New(cfg Config, observer Observer, logger *slog.Logger) (*Controller, error) {
	if cfg.Directory == "" {
		cfg.Directory = "."
	}
	if cfg.Naming == "" {
		cfg.Naming = NamingSequence
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = ObserverFunc(func(Notification) {})
	}

	c := &Controller{
		cfg:      cfg,
		ext:      normalizeExt(cfg.Extension),
		observer: observer,
		logger:   logger.With("component", "rotation", "directory", cfg.Directory),
		nextSeq:  1,
	}

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, &apperrors.FileIOError{Op: "mkdir", Path: cfg.Directory, Err: err}
	}

	archives, err := c.scanArchives()
	if err != nil {
		return nil, &apperrors.FileIOError{Op: "scan", Path: cfg.Directory, Err: err}
	}
	c.archives = archives
	if n := len(archives); n > 0 {
		c.nextSeq = archives[n-1].seq + 1
	}

	current := c.currentPathFor()
	if info, err := os.Stat(current); err == nil && info.Size() > 0 {
		archived := c.archivePathFor(c.nextSeq, time.Now())
		if err := os.Rename(current, archived); err != nil {
			return nil, &apperrors.FileIOError{Op: "rename", Path: current, Err: err}
		}
		c.archives = append(c.archives, archive{path: archived, seq: c.nextSeq})
		c.nextSeq++
		c.logger.Info("Archived log file from previous run", "path", archived, "size", info.Size())
	}

	if err := c.open(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.prune()
	c.mu.Unlock()

	c.logger.Debug("Rotation controller started",
		"current", current,
		"archives", len(c.archives),
		"max_file_size", cfg.MaxFileSize,
		"max_files", cfg.MaxFiles)

	return c, nil
}

// Write implements io.Writer. See Append.
func (c *Controller) Write(p []byte) (int, error) {
	return c.Append(p)
}

// Append writes p to the current file and rotates it if the resulting size
// exceeds MaxFileSize or the extra policy asks for it. The file may overshoot
// MaxFileSize by at most one append.
func (c *Controller) Append(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, apperrors.ErrControllerClosed
	}
	if c.file == nil {
		if err := c.open(); err != nil {
			return 0, err
		}
	}

	n, err := c.file.Write(p)
	c.size += int64(n)
	if n > 0 {
		now := time.Now()
		if c.stats.FirstWriteTime.IsZero() {
			c.stats.FirstWriteTime = now
		}
		c.stats.LastWriteTime = now
		c.stats.RecordCount++
	}
	if err != nil {
		return n, &apperrors.FileIOError{Op: "write", Path: c.currentPathFor(), Err: err}
	}

	if c.shouldRotate() {
		if err := c.rotate(); err != nil {
			c.logger.Error("Rotation failed, will retry on next write", "error", err)
			c.observer.Notify(Notification{Kind: RotateFailed, Err: err})
		}
	}

	return n, nil
}

// Rotate forces a rotation of a non-empty current file.
func (c *Controller) Rotate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperrors.ErrControllerClosed
	}
	if c.size == 0 {
		return nil
	}
	return c.rotate()
}

// Sync commits the current file to stable storage.
func (c *Controller) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	if err := c.file.Sync(); err != nil {
		return &apperrors.FileIOError{Op: "sync", Path: c.currentPathFor(), Err: err}
	}
	return nil
}

// Close syncs and closes the current file.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.file == nil {
		return nil
	}
	f := c.file
	c.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return &apperrors.FileIOError{Op: "sync", Path: f.Name(), Err: err}
	}
	if err := f.Close(); err != nil {
		return &apperrors.FileIOError{Op: "close", Path: f.Name(), Err: err}
	}
	return nil
}

// CurrentPath returns the canonical path of the current file.
func (c *Controller) CurrentPath() string {
	return c.currentPathFor()
}

// Size returns the number of bytes written to the current file.
func (c *Controller) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns statistics of the current file.
func (c *Controller) Stats() event.FileStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.SizeBytes = c.size
	return stats
}

// Archives returns the retained archive paths, oldest first.
func (c *Controller) Archives() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, len(c.archives))
	for i, a := range c.archives {
		paths[i] = a.path
	}
	return paths
}

func (c *Controller) shouldRotate() bool {
	if c.cfg.MaxFileSize > 0 && c.size > c.cfg.MaxFileSize {
		return true
	}
	if c.cfg.Policy != nil {
		stats := c.stats
		stats.SizeBytes = c.size
		return c.cfg.Policy.ShouldRotate(stats)
	}
	return false
}

// open must be called with c.mu held or before c is shared.
func (c *Controller) open() error {
	path := c.currentPathFor()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return &apperrors.FileIOError{Op: "open", Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &apperrors.FileIOError{Op: "stat", Path: path, Err: err}
	}
	c.file = f
	c.size = info.Size()
	return nil
}

// rotate archives the current file, opens a new one and prunes, in that order.
// On failure the current file is left open so writes continue.
func (c *Controller) rotate() error {
	current := c.currentPathFor()
	archived := c.archivePathFor(c.nextSeq, time.Now())

	if err := c.file.Sync(); err != nil {
		c.logger.Warn("Failed to sync file before rotation", "path", current, "error", err)
	}
	if err := c.file.Close(); err != nil {
		c.logger.Warn("Failed to close file before rotation", "path", current, "error", err)
	}
	c.file = nil

	if err := os.Rename(current, archived); err != nil {
		rerr := &apperrors.FileIOError{Op: "rename", Path: current, Err: err}
		if oerr := c.open(); oerr != nil {
			return errors.Join(rerr, oerr)
		}
		return rerr
	}

	if err := c.open(); err != nil {
		// Put the archive back so there is still a writable current file.
		if berr := os.Rename(archived, current); berr != nil {
			return errors.Join(err, &apperrors.FileIOError{Op: "rename", Path: archived, Err: berr})
		}
		if oerr := c.open(); oerr != nil {
			return errors.Join(err, oerr)
		}
		return err
	}

	c.archives = append(c.archives, archive{path: archived, seq: c.nextSeq})
	c.nextSeq++
	c.stats = event.FileStats{}

	c.logger.Info("Rotated log file", "archived", archived, "current", current)
	c.observer.Notify(Notification{Kind: Rotated, ArchivedPath: archived, NewPath: current})

	c.prune()
	return nil
}

// prune deletes the oldest archives while current plus archives exceed MaxFiles.
// Must be called with c.mu held.
func (c *Controller) prune() {
	if c.cfg.MaxFiles <= 0 {
		return
	}

	var pruned []string
	for len(c.archives) > 0 && len(c.archives)+1 > c.cfg.MaxFiles {
		oldest := c.archives[0]
		if err := os.Remove(oldest.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Error("Failed to prune archive", "path", oldest.path, "error", err)
			c.observer.Notify(Notification{
				Kind: RotateFailed,
				Err:  &apperrors.FileIOError{Op: "remove", Path: oldest.path, Err: err},
			})
			break
		}
		pruned = append(pruned, oldest.path)
		c.archives = c.archives[1:]
	}

	if len(pruned) > 0 {
		c.logger.Info("Pruned archived log files", "count", len(pruned))
		c.observer.Notify(Notification{Kind: Pruned, Pruned: pruned})
	}
}

func (c *Controller) String() string {
	return fmt.Sprintf("rotation.Controller(%s)", c.currentPathFor())
}
