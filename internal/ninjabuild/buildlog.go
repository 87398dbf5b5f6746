package ninjabuild

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// buildLogVersion is the text .ninja_log format version this package
// writes and the newest version it understands. A version-4 file is
// loaded with its records kept and rewritten at version 5 when opened;
// any other version makes opening the log fail with an error.
const (
	buildLogVersion   = 5
	buildLogOldVersion = 4
)

// LogRecord is one parsed/recorded line of .ninja_log: the edge that
// produced Output last ran from StartTimeMs to EndTimeMs, left the
// output with mtime Mtime, and matched command fingerprint CommandHash.
type LogRecord struct {
	Output      string
	StartTimeMs int64
	EndTimeMs   int64
	Mtime       int64
	CommandHash uint64
}

// BuildLog is the parsed .ninja_log plus a handle kept open for
// appending new records as the build progresses.
type BuildLog struct {
	path         string
	records      map[string]*LogRecord
	f            *os.File
	needsUpgrade bool
	log          *logrus.Logger
}

// OpenBuildLog loads path if it exists and reopens it (or creates it)
// for append-only writes. log may be nil; when set, an info line is
// emitted if an older-version log is upgraded in place.
func OpenBuildLog(path string, log *logrus.Logger) (*BuildLog, error) {
	b := &BuildLog{path: path, records: map[string]*LogRecord{}, log: log}
	if data, err := os.ReadFile(path); err == nil {
		if err := b.parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if b.needsUpgrade {
		return b, b.rewrite()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	b.f = f
	if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
		fmt.Fprintf(f, "# ninja log v%d\n", buildLogVersion)
	}
	return b, nil
}

// rewrite recreates the log at the current version from the in-memory
// record set, used to upgrade a v4 file found on open.
func (b *BuildLog) rewrite() error {
	if b.log != nil {
		b.log.Infof("%s: upgrading build log from v%d to v%d", b.path, buildLogOldVersion, buildLogVersion)
	}
	f, err := os.Create(b.path)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "# ninja log v%d\n", buildLogVersion)
	for _, rec := range b.records {
		fmt.Fprintf(f, "%d\t%d\t%d\t%s\t%x\n", rec.StartTimeMs, rec.EndTimeMs, rec.Mtime, rec.Output, rec.CommandHash)
	}
	b.f = f
	b.needsUpgrade = false
	return nil
}

func (b *BuildLog) parse(data []byte) error {
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	if !sc.Scan() {
		return nil
	}
	header := sc.Text()
	version := 0
	fmt.Sscanf(header, "# ninja log v%d", &version)
	switch version {
	case buildLogVersion:
	case buildLogOldVersion:
		b.needsUpgrade = true
	default:
		return fmt.Errorf("unsupported build log version %d", version)
	}
	for sc.Scan() {
		line := sc.Text()
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			continue
		}
		start, _ := strconv.ParseInt(fields[0], 10, 64)
		end, _ := strconv.ParseInt(fields[1], 10, 64)
		mtime, _ := strconv.ParseInt(fields[2], 10, 64)
		hash, _ := strconv.ParseUint(fields[4], 16, 64)
		b.records[fields[3]] = &LogRecord{
			Output:      fields[3],
			StartTimeMs: start,
			EndTimeMs:   end,
			Mtime:       mtime,
			CommandHash: hash,
		}
	}
	return sc.Err()
}

// Get returns the most recent record for output, if any. A nil *BuildLog
// (no log opened) behaves as always-empty.
func (b *BuildLog) Get(output string) (*LogRecord, bool) {
	if b == nil {
		return nil, false
	}
	r, ok := b.records[output]
	return r, ok
}

// Record appends rec and updates the in-memory index. Every call flushes
// to disk immediately so a crash mid-build loses at most the record in
// flight, never an earlier one.
func (b *BuildLog) Record(rec LogRecord) error {
	cp := rec
	b.records[rec.Output] = &cp
	if b.f == nil {
		return nil
	}
	if _, err := fmt.Fprintf(b.f, "%d\t%d\t%d\t%s\t%x\n", rec.StartTimeMs, rec.EndTimeMs, rec.Mtime, rec.Output, rec.CommandHash); err != nil {
		return err
	}
	return b.f.Sync()
}

// Close releases the underlying file handle.
func (b *BuildLog) Close() error {
	if b.f == nil {
		return nil
	}
	return b.f.Close()
}
