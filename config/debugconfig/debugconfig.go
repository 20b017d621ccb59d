/*
 * S370 - Debug options configuration.
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

// Package debugconfig wires the "debug" configuration option to the
// trace categories each subsystem exposes through its own Debug
// function.
package debugconfig

import (
	"errors"
	"strings"

	config "github.com/flinux-go/flinux/config/configparser"
	"github.com/flinux-go/flinux/dbt"
	"github.com/flinux-go/flinux/mm"
	"github.com/flinux-go/flinux/syscallabi"
)

func init() {
	config.RegisterOptions("debug", setDebug)
}

// setDebug dispatches "debug <subsystem> <category>..." lines to the
// named subsystem's Debug function.
func setDebug(subsystem string, options []config.Option) error {
	switch strings.ToUpper(subsystem) {
	case "DBT":
		return applyDebug(options, dbt.Debug)
	case "MM":
		return applyDebug(options, mm.Debug)
	case "SYSCALL":
		return applyDebug(options, syscallabi.Debug)
	default:
		return errors.New("debug option invalid: " + subsystem)
	}
}

func applyDebug(options []config.Option, enable func(string) error) error {
	for _, opt := range options {
		if err := enable(strings.ToUpper(opt.Name)); err != nil {
			return err
		}
		for _, value := range opt.Value {
			if err := enable(strings.ToUpper(*value)); err != nil {
				return err
			}
		}
	}
	return nil
}
