/*
 * S370 - Command parser.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package parser tokenizes and dispatches operator console lines
// against a live Session: dumping translated blocks and code-cache
// usage, dumping mapped guest regions, and driving mmap/munmap/
// mprotect/brk directly.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	command "github.com/flinux-go/flinux/command/command"
	"github.com/flinux-go/flinux/mm"
)

type cmd struct {
	name    string
	min     int
	process func(*cmdLine, *command.Session) (bool, error)
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "dump", min: 2, process: dump},
	{name: "mmap", min: 2, process: doMmap},
	{name: "munmap", min: 3, process: doMunmap},
	{name: "mprotect", min: 3, process: doMprotect},
	{name: "brk", min: 3, process: doBrk},
	{name: "quit", min: 1, process: quit},
}

// ProcessCommand executes one operator console line against session.
func ProcessCommand(commandLine string, session *command.Session) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord()

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(&line, session)
}

// CompleteCmd completes a command name during line editing; it does
// not attempt to complete arguments.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord()
	if !line.isEOL() {
		return nil
	}
	var matches []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, name) {
			matches = append(matches, m.name)
		}
	}
	return matches
}

func matchCommand(m cmd, name string) bool {
	if len(name) > len(m.name) {
		return false
	}
	for i := range name {
		if name[i] != m.name[i] {
			return false
		}
	}
	return len(name) >= m.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, name) {
			match = append(match, m)
		}
	}
	return match
}

func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// getWord reads the next run of non-space characters.
func (line *cmdLine) getWord() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	start := line.pos
	for line.pos < len(line.line) && !unicode.IsSpace(rune(line.line[line.pos])) && line.line[line.pos] != '#' {
		line.pos++
	}
	return strings.ToLower(line.line[start:line.pos])
}

// getUint parses the next word as a number; base 0 accepts a 0x
// prefix so addresses can be typed in hex.
func (line *cmdLine) getUint(name string) (uint64, error) {
	word := line.getWord()
	if word == "" {
		return 0, errors.New(name + " requires an argument")
	}
	n, err := strconv.ParseUint(word, 0, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number: " + word)
	}
	return n, nil
}

func parseProt(word string) (mm.Prot, error) {
	var prot mm.Prot
	for _, c := range word {
		switch c {
		case 'r':
			prot |= mm.ProtRead
		case 'w':
			prot |= mm.ProtWrite
		case 'x':
			prot |= mm.ProtExec
		case '-':
		default:
			return 0, fmt.Errorf("invalid protection flag: %q", c)
		}
	}
	return prot, nil
}

func protString(prot mm.Prot) string {
	b := [3]byte{'-', '-', '-'}
	if prot&mm.ProtRead != 0 {
		b[0] = 'r'
	}
	if prot&mm.ProtWrite != 0 {
		b[1] = 'w'
	}
	if prot&mm.ProtExec != 0 {
		b[2] = 'x'
	}
	return string(b[:])
}

// dump handles "dump blocks", "dump cache" and "dump pages".
func dump(line *cmdLine, session *command.Session) (bool, error) {
	switch line.getWord() {
	case "blocks":
		for _, b := range session.DBT.Blocks() {
			fmt.Printf("%#08x -> %#08x\n", b.GuestPC, b.HostStart)
		}
	case "cache":
		u := session.DBT.CacheUsage()
		fmt.Printf("blocks: %d bytes  trampolines: %d bytes  capacity: %d bytes\n",
			u.BlocksBytes, u.TrampolinesBytes, u.Capacity)
	case "pages":
		for _, r := range session.MM.Regions() {
			fmt.Printf("%#08x-%#08x %s\n", r.Start, r.End, protString(r.Prot))
		}
	default:
		return false, errors.New("dump requires blocks, cache or pages")
	}
	return false, nil
}

func doMmap(line *cmdLine, session *command.Session) (bool, error) {
	addr, err := line.getUint("mmap address")
	if err != nil {
		return false, err
	}
	length, err := line.getUint("mmap length")
	if err != nil {
		return false, err
	}
	protWord := line.getWord()
	if protWord == "" {
		return false, errors.New("mmap requires a protection string, e.g. rw-")
	}
	prot, err := parseProt(protWord)
	if err != nil {
		return false, err
	}
	got, err := session.MM.Mmap(uintptr(addr), uint(length), prot, mm.MapFixed|mm.MapAnonymous|mm.MapPrivate, nil, 0)
	if err != nil {
		return false, err
	}
	fmt.Printf("mapped at %#08x\n", got)
	return false, nil
}

func doMunmap(line *cmdLine, session *command.Session) (bool, error) {
	addr, err := line.getUint("munmap address")
	if err != nil {
		return false, err
	}
	length, err := line.getUint("munmap length")
	if err != nil {
		return false, err
	}
	return false, session.MM.Munmap(uintptr(addr), uint(length))
}

func doMprotect(line *cmdLine, session *command.Session) (bool, error) {
	addr, err := line.getUint("mprotect address")
	if err != nil {
		return false, err
	}
	length, err := line.getUint("mprotect length")
	if err != nil {
		return false, err
	}
	protWord := line.getWord()
	if protWord == "" {
		return false, errors.New("mprotect requires a protection string, e.g. r--")
	}
	prot, err := parseProt(protWord)
	if err != nil {
		return false, err
	}
	return false, session.MM.Mprotect(uintptr(addr), uint(length), prot)
}

func doBrk(line *cmdLine, session *command.Session) (bool, error) {
	addr, err := line.getUint("brk address")
	if err != nil {
		return false, err
	}
	got, err := session.MM.UpdateBrk(uintptr(addr))
	if err != nil {
		return false, err
	}
	fmt.Printf("brk now %#08x\n", got)
	return false, nil
}

func quit(_ *cmdLine, _ *command.Session) (bool, error) {
	return true, nil
}
