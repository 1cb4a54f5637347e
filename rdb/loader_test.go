package rdb_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raniellyferreira/redis-lite/rdb"
)

type entry struct {
	value    string
	deadline *time.Time
}

// recordingSink collects every key delivered by the loader
type recordingSink struct {
	keys  map[string]entry
	order []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{keys: make(map[string]entry)}
}

func (s *recordingSink) OnKey(key, value string, deadline *time.Time) error {
	s.keys[key] = entry{value: value, deadline: deadline}
	s.order = append(s.order, key)
	return nil
}

// snapshotBuilder assembles snapshot bytes for tests
type snapshotBuilder struct {
	buf []byte
}

func newSnapshot() *snapshotBuilder {
	return &snapshotBuilder{buf: []byte("REDIS0011")}
}

func (b *snapshotBuilder) raw(p ...byte) *snapshotBuilder {
	b.buf = append(b.buf, p...)
	return b
}

func (b *snapshotBuilder) table(total, expires byte) *snapshotBuilder {
	return b.raw(rdb.OpcodeSelectDB, 0x00, rdb.OpcodeResizeDB, total, expires)
}

func (b *snapshotBuilder) kv(key, value string) *snapshotBuilder {
	b.buf = append(b.buf, rdb.TypeString)
	b.buf = rdb.AppendString(b.buf, key)
	b.buf = rdb.AppendString(b.buf, value)
	return b
}

func (b *snapshotBuilder) expiryMs(ms uint64) *snapshotBuilder {
	b.buf = append(b.buf, rdb.OpcodeExpiryMs)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, ms)
	return b
}

func (b *snapshotBuilder) expirySec(sec uint32) *snapshotBuilder {
	b.buf = append(b.buf, rdb.OpcodeExpirySec)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, sec)
	return b
}

func (b *snapshotBuilder) eof() []byte {
	b.buf = append(b.buf, rdb.OpcodeEOF)
	// Checksum bytes are never inspected.
	return append(b.buf, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x00)
}

func TestLoadSingleKey(t *testing.T) {
	data := newSnapshot().table(1, 0).kv("foo", "bar").eof()
	sink := newRecordingSink()

	stats, err := rdb.Load(data, sink)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if stats.Keys != 1 {
		t.Errorf("stats.Keys = %d, want 1", stats.Keys)
	}
	if !stats.ReachedEOF {
		t.Error("expected loader to stop at EOF opcode")
	}

	got, ok := sink.keys["foo"]
	if !ok {
		t.Fatal("expected key foo to be loaded")
	}
	if got.value != "bar" {
		t.Errorf("value = %q, want bar", got.value)
	}
	if got.deadline != nil {
		t.Errorf("deadline = %v, want nil", got.deadline)
	}
}

func TestLoadBadMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("RED")},
		{"wrong", append([]byte("REDIX0011"), rdb.OpcodeEOF)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newRecordingSink()
			stats, err := rdb.Load(tt.data, sink)
			if !errors.Is(err, rdb.ErrBadMagic) {
				t.Fatalf("Load() error = %v, want ErrBadMagic", err)
			}
			if stats.Keys != 0 || len(sink.keys) != 0 {
				t.Errorf("expected no keys, got %d", len(sink.keys))
			}
		})
	}
}

func TestLoadExpiryMilliseconds(t *testing.T) {
	deadline := time.Date(2032, 1, 1, 0, 0, 0, 0, time.UTC)
	data := newSnapshot().
		table(2, 1).
		expiryMs(uint64(deadline.UnixMilli())).kv("session", "abc").
		kv("plain", "value").
		eof()

	sink := newRecordingSink()
	stats, err := rdb.Load(data, sink)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if stats.Keys != 2 || stats.Expiring != 1 {
		t.Errorf("stats = %+v, want 2 keys and 1 expiring", stats)
	}

	got := sink.keys["session"]
	if got.deadline == nil {
		t.Fatal("expected deadline on session")
	}
	if !got.deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got.deadline, deadline)
	}
	if sink.keys["plain"].deadline != nil {
		t.Error("expected no deadline on plain")
	}
}

func TestLoadExpirySeconds(t *testing.T) {
	deadline := time.Date(2031, 6, 1, 12, 0, 0, 0, time.UTC)
	data := newSnapshot().
		table(1, 1).
		expirySec(uint32(deadline.Unix())).kv("k", "v").
		eof()

	sink := newRecordingSink()
	if _, err := rdb.Load(data, sink); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := sink.keys["k"]
	if got.value != "v" {
		t.Errorf("value = %q, want v", got.value)
	}
	if got.deadline == nil || !got.deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got.deadline, deadline)
	}
}

func TestLoadStopsAtEOF(t *testing.T) {
	data := newSnapshot().table(1, 0).kv("a", "1").eof()
	// A table after EOF must never be read.
	data = append(data, rdb.OpcodeResizeDB, 1, 0, rdb.TypeString, 1, 'b', 1, '2')

	sink := newRecordingSink()
	if _, err := rdb.Load(data, sink); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := sink.keys["b"]; ok {
		t.Error("key after EOF opcode should not be loaded")
	}
}

func TestLoadSkipsAuxAndUnknownBytes(t *testing.T) {
	b := newSnapshot().raw(rdb.OpcodeAux)
	b.buf = rdb.AppendString(b.buf, "redis-ver")
	b.buf = rdb.AppendString(b.buf, "7.2.0")
	data := b.table(1, 0).kv("foo", "bar").eof()

	sink := newRecordingSink()
	stats, err := rdb.Load(data, sink)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if sink.keys["foo"].value != "bar" {
		t.Errorf("foo = %q, want bar", sink.keys["foo"].value)
	}
	if stats.SkippedBytes == 0 {
		t.Error("expected version digits and aux payload to be skipped")
	}
}

func TestLoadWithoutEOF(t *testing.T) {
	b := newSnapshot().table(1, 0).kv("x", "y")

	sink := newRecordingSink()
	stats, err := rdb.Load(b.buf, sink)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stats.ReachedEOF {
		t.Error("ReachedEOF should be false")
	}
	if sink.keys["x"].value != "y" {
		t.Errorf("x = %q, want y", sink.keys["x"].value)
	}
}

func TestLoadTruncatedEntry(t *testing.T) {
	// The table announces two keys but the second value is cut short.
	b := newSnapshot().table(2, 0).kv("first", "ok")
	b.raw(rdb.TypeString, 0x06, 's', 'e', 'c', 'o', 'n', 'd', 0x05, 'v')

	sink := newRecordingSink()
	stats, err := rdb.Load(b.buf, sink)
	if !errors.Is(err, rdb.ErrTruncated) {
		t.Fatalf("Load() error = %v, want ErrTruncated", err)
	}
	if stats.Keys != 1 {
		t.Errorf("stats.Keys = %d, want 1", stats.Keys)
	}
	if _, ok := sink.keys["first"]; !ok {
		t.Error("keys delivered before the failure should remain")
	}
}

func TestLoadUnsupportedValueType(t *testing.T) {
	b := newSnapshot().table(1, 0).raw(0x02, 0x01, 'k', 0x01, 0x01, 'm')

	_, err := rdb.Load(b.eof(), newRecordingSink())
	if !errors.Is(err, rdb.ErrUnsupportedType) {
		t.Fatalf("Load() error = %v, want ErrUnsupportedType", err)
	}
}

func TestLoadSinkError(t *testing.T) {
	data := newSnapshot().table(1, 0).kv("foo", "bar").eof()
	boom := errors.New("boom")

	_, err := rdb.Load(data, rdb.SinkFunc(func(key, value string, deadline *time.Time) error {
		return boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want sink error", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data := newSnapshot().table(2, 0).kv("foo", "bar").kv("baz", "qux").eof()
	if err := os.WriteFile(filepath.Join(dir, "dump.rdb"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	sink := newRecordingSink()
	stats, err := rdb.LoadFile(dir, "dump.rdb", sink)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if stats.Keys != 2 {
		t.Errorf("stats.Keys = %d, want 2", stats.Keys)
	}
	if sink.keys["baz"].value != "qux" {
		t.Errorf("baz = %q, want qux", sink.keys["baz"].value)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.rdb"), []byte("NOTREDIS"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		dir      string
		filename string
		want     error
	}{
		{"no directory", "", "dump.rdb", rdb.ErrNoDirectory},
		{"no filename", dir, "", rdb.ErrNoFilename},
		{"bad magic", dir, "bad.rdb", rdb.ErrBadMagic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rdb.LoadFile(tt.dir, tt.filename, newRecordingSink())
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := rdb.LoadFile(dir, "missing.rdb", newRecordingSink()); err == nil {
		t.Error("expected error for missing file")
	}
}
