package ninjabuild

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	depsLogHeader   = "# ninjadeps\n"
	depsLogVersion  = 4
	depRecordBit    = uint32(1) << 31
	maxRecordBytes  = 1 << 19
)

// DepRecord is the dependency set ninja discovered for one output,
// keyed implicitly by the output's path in DepsLog.records.
type DepRecord struct {
	Mtime int64
	Deps  []string
}

// DepsLog is the in-memory mirror of .ninja_deps plus a handle for
// appending new records. Node IDs are assigned sequentially as paths
// are first seen; dep records reference them by id to keep the file
// small relative to repeating full paths.
type DepsLog struct {
	path      string
	nodeIDs   map[string]int32
	nodePaths []string
	records   map[string]DepRecord
	f         *os.File
}

// OpenDepsLog loads path (tolerating a corrupt tail, which is dropped)
// and opens it for append. A log that was corrupt, or that accumulated
// node records no longer referenced by any live dependency record, is
// rewritten compactly before returning.
func OpenDepsLog(path string) (*DepsLog, error) {
	d := &DepsLog{
		path:    path,
		nodeIDs: map[string]int32{},
		records: map[string]DepRecord{},
	}
	needsRecompact := false
	if data, err := os.ReadFile(path); err == nil {
		if err := d.parse(data); err != nil {
			needsRecompact = true
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if !needsRecompact && d.hasObsoleteNodes() {
		needsRecompact = true
	}
	if needsRecompact {
		if err := d.recompact(); err != nil {
			return nil, err
		}
		return d, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	d.f = f
	return d, nil
}

func (d *DepsLog) hasObsoleteNodes() bool {
	referenced := make(map[int32]bool, len(d.records))
	for path := range d.records {
		referenced[d.nodeIDs[path]] = true
		for _, dep := range d.records[path].Deps {
			if id, ok := d.nodeIDs[dep]; ok {
				referenced[id] = true
			}
		}
	}
	return len(referenced) != len(d.nodePaths)
}

func (d *DepsLog) parse(data []byte) error {
	if len(data) < len(depsLogHeader)+4 {
		return errors.New("truncated deps log header")
	}
	if string(data[:len(depsLogHeader)]) != depsLogHeader {
		return errors.New("bad deps log signature")
	}
	pos := len(depsLogHeader)
	version := binary.LittleEndian.Uint32(data[pos:])
	pos += 4
	if version != depsLogVersion {
		return fmt.Errorf("unsupported deps log version %d", version)
	}
	for pos+4 <= len(data) {
		word := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		size := int(word &^ depRecordBit)
		isDep := word&depRecordBit != 0
		if size > maxRecordBytes || size%4 != 0 || pos+size > len(data) {
			return errors.New("corrupt deps log record")
		}
		rec := data[pos : pos+size]
		pos += size
		if isDep {
			if err := d.parseDepRecord(rec); err != nil {
				return err
			}
		} else {
			if err := d.parseNodeRecord(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *DepsLog) parseNodeRecord(rec []byte) error {
	if len(rec) < 4 {
		return errors.New("truncated node record")
	}
	pathBytes := rec[:len(rec)-4]
	checksum := binary.LittleEndian.Uint32(rec[len(rec)-4:])
	id := int32(len(d.nodePaths))
	if checksum != ^uint32(id) {
		return errors.New("bad node checksum")
	}
	end := len(pathBytes)
	for end > 0 && pathBytes[end-1] == 0 {
		end--
	}
	path := string(pathBytes[:end])
	d.nodePaths = append(d.nodePaths, path)
	d.nodeIDs[path] = id
	return nil
}

func (d *DepsLog) parseDepRecord(rec []byte) error {
	if len(rec) < 12 {
		return errors.New("truncated dep record")
	}
	nodeID := int32(binary.LittleEndian.Uint32(rec[0:4]))
	low := binary.LittleEndian.Uint32(rec[4:8])
	high := binary.LittleEndian.Uint32(rec[8:12])
	mtime := int64(low) | int64(high)<<32
	if int(nodeID) < 0 || int(nodeID) >= len(d.nodePaths) {
		return errors.New("dep record references unknown node id")
	}
	depIDs := rec[12:]
	if len(depIDs)%4 != 0 {
		return errors.New("truncated dep id list")
	}
	deps := make([]string, 0, len(depIDs)/4)
	for i := 0; i+4 <= len(depIDs); i += 4 {
		id := int32(binary.LittleEndian.Uint32(depIDs[i : i+4]))
		if int(id) < 0 || int(id) >= len(d.nodePaths) {
			return errors.New("dep record references unknown dependency id")
		}
		deps = append(deps, d.nodePaths[id])
	}
	d.records[d.nodePaths[nodeID]] = DepRecord{Mtime: mtime, Deps: deps}
	return nil
}

// Get returns the most recently recorded dependency set for path.
func (d *DepsLog) Get(path string) (DepRecord, bool) {
	r, ok := d.records[path]
	return r, ok
}

// writeNode assigns (if necessary) and returns path's node id, appending
// a node record to the open log file.
func (d *DepsLog) writeNode(path string) (int32, error) {
	if id, ok := d.nodeIDs[path]; ok {
		return id, nil
	}
	id := int32(len(d.nodePaths))
	d.nodePaths = append(d.nodePaths, path)
	d.nodeIDs[path] = id

	padded := len(path)
	if rem := padded % 4; rem != 0 {
		padded += 4 - rem
	}
	rec := make([]byte, padded+4)
	copy(rec, path)
	binary.LittleEndian.PutUint32(rec[padded:], ^uint32(id))

	if err := d.writeRecord(rec, false); err != nil {
		return 0, err
	}
	return id, nil
}

// WriteDeps records that path depends on deps as of mtime, assigning
// node ids for any path seen for the first time.
func (d *DepsLog) WriteDeps(path string, mtime int64, deps []string) error {
	id, err := d.writeNode(path)
	if err != nil {
		return err
	}
	depIDs := make([]int32, len(deps))
	for i, dep := range deps {
		depID, err := d.writeNode(dep)
		if err != nil {
			return err
		}
		depIDs[i] = depID
	}

	rec := make([]byte, 12+4*len(depIDs))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(id))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(uint64(mtime)&0xFFFFFFFF))
	binary.LittleEndian.PutUint32(rec[8:12], uint32(uint64(mtime)>>32))
	for i, depID := range depIDs {
		binary.LittleEndian.PutUint32(rec[12+4*i:16+4*i], uint32(depID))
	}
	if err := d.writeRecord(rec, true); err != nil {
		return err
	}
	d.records[path] = DepRecord{Mtime: mtime, Deps: append([]string(nil), deps...)}
	return nil
}

func (d *DepsLog) writeRecord(rec []byte, isDep bool) error {
	if d.f == nil {
		return nil
	}
	word := uint32(len(rec))
	if isDep {
		word |= depRecordBit
	}
	var head [4]byte
	binary.LittleEndian.PutUint32(head[:], word)
	if _, err := d.f.Write(head[:]); err != nil {
		return err
	}
	if _, err := d.f.Write(rec); err != nil {
		return err
	}
	return d.f.Sync()
}

// recompact rewrites the log from scratch, keeping only node ids
// referenced by a current record, and reopens it for append.
func (d *DepsLog) recompact() error {
	old := d.records
	d.records = map[string]DepRecord{}
	d.nodeIDs = map[string]int32{}
	d.nodePaths = nil

	f, err := os.Create(d.path)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(depsLogHeader); err != nil {
		f.Close()
		return err
	}
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], depsLogVersion)
	if _, err := f.Write(verBuf[:]); err != nil {
		f.Close()
		return err
	}
	d.f = f
	for path, rec := range old {
		if err := d.WriteDeps(path, rec.Mtime, rec.Deps); err != nil {
			f.Close()
			return err
		}
	}
	return nil
}

// Close releases the underlying file handle.
func (d *DepsLog) Close() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}
