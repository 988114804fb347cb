package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"termshare/internal/types"
)

func testRecord(id string, port int) types.SessionRecord {
	return types.SessionRecord{
		ID:        id,
		Token:     "tok-" + id,
		Name:      "session-" + id,
		Port:      port,
		Machine:   "testhost",
		PID:       1234,
		CreatedAt: time.Now(),
	}
}

func TestWriteListRemove(t *testing.T) {
	reg, err := NewAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}

	if err := reg.Write(testRecord("aaa", 7001)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := reg.Write(testRecord("bbb", 7002)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := len(reg.List()); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}

	if !reg.Remove("aaa") {
		t.Fatal("Remove should report an existing record")
	}
	if reg.Remove("aaa") {
		t.Fatal("second Remove should report nothing to delete")
	}
	if got := len(reg.List()); got != 1 {
		t.Fatalf("expected 1 record after removal, got %d", got)
	}
}

func TestFindByPort(t *testing.T) {
	reg, err := NewAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}
	reg.Write(testRecord("aaa", 7001))

	rec, ok := reg.FindByPort(7001)
	if !ok || rec.Token != "tok-aaa" {
		t.Fatalf("FindByPort(7001) = %+v, %v", rec, ok)
	}
	if _, ok := reg.FindByPort(9999); ok {
		t.Fatal("unknown port should not resolve")
	}
}

func TestListToleratesCorruptRecords(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewAt(dir)
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}
	reg.Write(testRecord("aaa", 7001))

	// A crashed session can leave a truncated file behind.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0600); err != nil {
		t.Fatalf("write stray file: %v", err)
	}

	records := reg.List()
	if len(records) != 1 || records[0].ID != "aaa" {
		t.Fatalf("expected corrupt records skipped, got %+v", records)
	}
}

func TestRecordPermissionsOwnerOnly(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewAt(dir)
	if err != nil {
		t.Fatalf("NewAt: %v", err)
	}
	reg.Write(testRecord("aaa", 7001))

	info, err := os.Stat(filepath.Join(dir, "aaa.json"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("record file should be owner-only, got %04o", perm)
	}
}
