//go:build windows

package main

import (
	"github.com/flinux-go/flinux/mm/host"
	"github.com/flinux-go/flinux/mm/host/ntwindows"
)

// newHost returns the real NT-backed mm/host.Host on Windows, the
// platform this translator's section/protection primitives target.
func newHost() host.Host {
	return ntwindows.New()
}
