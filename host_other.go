//go:build !windows

package main

import (
	"github.com/flinux-go/flinux/mm/host"
	"github.com/flinux-go/flinux/mm/host/simhost"
)

// newHost returns simhost's in-process simulation of the NT host
// boundary on non-Windows builds, so the console and its mmap/munmap/
// mprotect/brk commands work the same way off-target as they do on it.
func newHost() host.Host {
	return simhost.New()
}
