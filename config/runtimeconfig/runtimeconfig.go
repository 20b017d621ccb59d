/*
 * S370 - Runtime tunable configuration.
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

// Package runtimeconfig binds configuration-file options to the
// translator and memory-manager tunables every process instance is
// built with: cache and block-arena sizing for dbt, and the map-entry
// arena size for mm. Each setting registers its own option with
// configparser from init.
package runtimeconfig

import (
	"errors"
	"strconv"

	config "github.com/flinux-go/flinux/config/configparser"
	"github.com/flinux-go/flinux/dbt"
	"github.com/flinux-go/flinux/mm"
)

// Settings collects every value the registered options have set so
// far. Callers read it once, after LoadConfigFile returns, to build
// the dbt.Config and mm.Config used to construct the per-process
// Translator and Manager.
var Settings struct {
	DBT dbt.Config
	MM  mm.Config
}

func init() {
	config.RegisterOption("cachesize", setCacheSize)
	config.RegisterOption("maxblocks", setMaxBlocks)
	config.RegisterOption("maxblockbytes", setMaxBlockBytes)
	config.RegisterOption("maxmapentries", setMaxMapEntries)
}

func parseSize(name, value string) (int, error) {
	n, err := strconv.ParseInt(value, 0, 64)
	if err != nil {
		return 0, errors.New(name + " must be a number: " + value)
	}
	if n <= 0 {
		return 0, errors.New(name + " must be positive: " + value)
	}
	return int(n), nil
}

func setCacheSize(value string, _ []config.Option) error {
	n, err := parseSize("cachesize", value)
	if err != nil {
		return err
	}
	Settings.DBT.CacheSize = n
	return nil
}

func setMaxBlocks(value string, _ []config.Option) error {
	n, err := parseSize("maxblocks", value)
	if err != nil {
		return err
	}
	Settings.DBT.MaxBlocks = n
	return nil
}

func setMaxBlockBytes(value string, _ []config.Option) error {
	n, err := parseSize("maxblockbytes", value)
	if err != nil {
		return err
	}
	Settings.DBT.MaxBlockBytes = n
	return nil
}

func setMaxMapEntries(value string, _ []config.Option) error {
	n, err := parseSize("maxmapentries", value)
	if err != nil {
		return err
	}
	Settings.MM.MaxMapEntries = n
	return nil
}
