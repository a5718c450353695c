package rotation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Naming selects how archive files are named.
type Naming string

const (
	// NamingSequence names archives <prefix><seq>.<ext>.
	NamingSequence Naming = "sequence"
	// NamingTimestamp names archives <prefix><YYYYMMDDTHHMMSS>-<seq>.<ext>.
	NamingTimestamp Naming = "timestamp"
)

const (
	currentMarker   = "current"
	timestampLayout = "20060102T150405"
)

// ParseNaming converts a configuration value to a Naming.
func ParseNaming(s string) (Naming, error) {
	switch Naming(strings.ToLower(s)) {
	case NamingSequence, "":
		return NamingSequence, nil
	case NamingTimestamp:
		return NamingTimestamp, nil
	default:
		return "", fmt.Errorf("unknown archive naming scheme %q", s)
	}
}

type archive struct {
	path string
	seq  uint64
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ".log"
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

func (c *Controller) currentPathFor() string {
	return filepath.Join(c.cfg.Directory, c.cfg.Prefix+currentMarker+c.ext)
}

func (c *Controller) archivePathFor(seq uint64, now time.Time) string {
	var name string
	switch c.cfg.Naming {
	case NamingTimestamp:
		name = fmt.Sprintf("%s%s-%06d%s", c.cfg.Prefix, now.Format(timestampLayout), seq, c.ext)
	default:
		name = fmt.Sprintf("%s%06d%s", c.cfg.Prefix, seq, c.ext)
	}
	return filepath.Join(c.cfg.Directory, name)
}

// parseSequence extracts the sequence from an archive file name of either scheme.
func (c *Controller) parseSequence(name string) (uint64, bool) {
	if !strings.HasPrefix(name, c.cfg.Prefix) || !strings.HasSuffix(name, c.ext) {
		return 0, false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(name, c.cfg.Prefix), c.ext)
	if middle == "" || middle == currentMarker {
		return 0, false
	}
	if i := strings.LastIndexByte(middle, '-'); i >= 0 {
		if _, err := time.Parse(timestampLayout, middle[:i]); err != nil {
			return 0, false
		}
		middle = middle[i+1:]
	}
	seq, err := strconv.ParseUint(middle, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// scanArchives lists existing archives sorted oldest first.
func (c *Controller) scanArchives() ([]archive, error) {
	dirEntries, err := os.ReadDir(c.cfg.Directory)
	if err != nil {
		return nil, err
	}

	var archives []archive
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		seq, ok := c.parseSequence(de.Name())
		if !ok {
			continue
		}
		archives = append(archives, archive{path: filepath.Join(c.cfg.Directory, de.Name()), seq: seq})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].seq < archives[j].seq
	})
	return archives, nil
}
