package mm_test

import (
	"testing"

	"github.com/flinux-go/flinux/layout"
	"github.com/flinux-go/flinux/mm"
	"github.com/flinux-go/flinux/mm/host/simhost"
)

func TestForkSharesBlockAndStripsWrite(t *testing.T) {
	parent, parentHost := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := parent.Mmap(base, layout.PageSize, mm.ProtRead|mm.ProtWrite, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if !parentHost.Write(base, []byte("hello")) {
		t.Fatal("seeding parent memory failed")
	}

	childHost := simhost.New()
	child := parent.ForkChild(childHost)
	if err := parent.Fork(child); err != nil {
		t.Fatalf("Fork: %v", err)
	}

	got, ok := childHost.Read(base, 5)
	if !ok || string(got) != "hello" {
		t.Fatalf("child memory = %q, %v; want \"hello\", true", got, ok)
	}

	if prot, ok := parentHost.Prot(base); !ok || prot&mm.ProtWrite != 0 {
		t.Fatalf("parent page still writable after fork: %v, %v", prot, ok)
	}
	if prot, ok := childHost.Prot(base); !ok || prot&mm.ProtWrite != 0 {
		t.Fatalf("child page writable after fork: %v, %v", prot, ok)
	}

	// A subsequent write fault on either side must be resolvable: the
	// parent's fault sees the shared section's handle count above one and
	// clones the block; the child's then finds itself the sole owner and
	// only restores the stored protection. Neither is reported as a
	// genuine protection violation.
	if !parent.HandlePageFault(base) {
		t.Fatal("HandlePageFault on parent returned false for a COW page")
	}
	if !child.HandlePageFault(base) {
		t.Fatal("HandlePageFault on child returned false for a COW page")
	}

	parentHost.Write(base, []byte("PARNT"))
	childHost.Write(base, []byte("CHILD"))

	if got, _ := parentHost.Read(base, 5); string(got) != "PARNT" {
		t.Fatalf("parent memory = %q after independent write", got)
	}
	if got, _ := childHost.Read(base, 5); string(got) != "CHILD" {
		t.Fatalf("child memory = %q after independent write", got)
	}
}

func TestForkAppliesReadOnlyProtectionToChild(t *testing.T) {
	parent, _ := newManager(t)
	base := uintptr(layout.AllocationLow)
	if _, err := parent.Mmap(base, layout.PageSize, mm.ProtRead, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0); err != nil {
		t.Fatalf("Mmap: %v", err)
	}

	childHost := simhost.New()
	child := parent.ForkChild(childHost)
	if err := parent.Fork(child); err != nil {
		t.Fatalf("Fork: %v", err)
	}

	// The child's section is freshly mapped RWX by CreateSection; a
	// read-only guest page must be brought down to that protection in
	// the child even though it was never writable and so never took
	// the copy-on-write branch.
	prot, ok := childHost.Prot(base)
	if !ok {
		t.Fatal("child page has no recorded protection")
	}
	if prot&mm.ProtWrite != 0 {
		t.Fatalf("child page writable after fork of a read-only mapping: %v", prot)
	}
	if prot&mm.ProtRead == 0 {
		t.Fatalf("child page lost read access after fork: %v", prot)
	}
}
