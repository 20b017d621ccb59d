package parser

import (
	"fmt"
	"testing"

	command "github.com/flinux-go/flinux/command/command"
	"github.com/flinux-go/flinux/dbt"
	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
	"github.com/flinux-go/flinux/mm/host/simhost"
)

type nullHost struct{}

func (nullHost) ReadByte(addr uintptr) (byte, error) { return 0xC3, nil }
func (nullHost) SyscallHandler() uintptr             { return layout.DBTDataBase }
func (nullHost) TLSSlotToOffset(slot int) int        { return slot * 4 }

func newSession(t *testing.T) *command.Session {
	t.Helper()
	return &command.Session{
		DBT: dbt.Init(dbt.Config{}, nullHost{}),
		MM:  mm.New(mm.Config{}, simhost.New()),
	}
}

func TestProcessCommandUnknown(t *testing.T) {
	if _, err := ProcessCommand("bogus", newSession(t)); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestProcessCommandQuit(t *testing.T) {
	quit, err := ProcessCommand("quit", newSession(t))
	if err != nil {
		t.Fatal(err)
	}
	if !quit {
		t.Fatal("quit command did not request exit")
	}
}

func TestDumpBlocksAfterTranslate(t *testing.T) {
	s := newSession(t)
	if _, err := s.DBT.FindNext(0x1000); err != nil {
		t.Fatal(err)
	}
	if _, err := ProcessCommand("dump blocks", s); err != nil {
		t.Fatal(err)
	}
}

func TestDumpRequiresArgument(t *testing.T) {
	if _, err := ProcessCommand("dump", newSession(t)); err == nil {
		t.Fatal("expected error for dump with no argument")
	}
}

func TestMmapMunmapRoundTrip(t *testing.T) {
	s := newSession(t)
	addr := uintptr(layout.AllocationLow)
	cmd := "mmap " + hexArg(addr) + " 0x1000 rw-"
	if _, err := ProcessCommand(cmd, s); err != nil {
		t.Fatal(err)
	}
	regions := s.MM.Regions()
	if len(regions) != 1 {
		t.Fatalf("expected 1 mapped region, got %d", len(regions))
	}
	if _, err := ProcessCommand("munmap "+hexArg(addr)+" 0x1000", s); err != nil {
		t.Fatal(err)
	}
	if len(s.MM.Regions()) != 0 {
		t.Fatal("expected region to be gone after munmap")
	}
}

func TestMprotectRejectsBadFlag(t *testing.T) {
	s := newSession(t)
	addr := uintptr(layout.AllocationLow)
	if _, err := ProcessCommand("mmap "+hexArg(addr)+" 0x1000 rw-", s); err != nil {
		t.Fatal(err)
	}
	if _, err := ProcessCommand("mprotect "+hexArg(addr)+" 0x1000 zzz", s); err == nil {
		t.Fatal("expected error for invalid protection string")
	}
}

func TestCompleteCmdPrefix(t *testing.T) {
	matches := CompleteCmd("mm")
	found := false
	for _, m := range matches {
		if m == "mmap" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mmap in completions, got %v", matches)
	}
}

func hexArg(addr uintptr) string {
	return fmt.Sprintf("%#x", addr)
}
