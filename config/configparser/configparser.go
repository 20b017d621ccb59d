/*
 * S370 - Configuration file parser
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

// Package configparser parses the line-oriented configuration file
// format runtimeconfig binds to dbt/mm tunables. It originally also
// drove 370 device-model creation; this module has no devices, so that
// path is gone and only the plain- and list-valued option forms remain.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// List of values attached to one option.
type Option struct {
	Name     string    // Name of option.
	EqualOpt string    // Value of string after =.
	Value    []*string // Value of option.
}

// Model specification: the first token on a line.
type modelName struct {
	model string
}

// First bare value following the option name, if any.
type FirstOption struct {
	value string // String value of option.
}

// Current option line being parsed.
type optionLine struct {
	line string // Current option line.
	pos  int    // Current position in line.
}

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <option> <whitespace> <options>
 * <options> ::= *(<option> *(<whitespace>))
 * <option> ::= *<value> (<whitespace> | <eol>
 * <value> ::= <opt> *(',' *(<whitespace>) <string>
 * <opt> := <valueopt> | <string>
 * <commaopt> ::= ',' *(<whitespace>) <string>
 * <optstring> ::= <string>
 * <optvalue> ::= <string>' =' <quoteopt>
 * <quoteopt> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 * <string> ::= *(<letter> | <number>)
 */

const (
	TypeOption  = 1 + iota // Accepts a single value.
	TypeOptions            // Accepts a list of values.
	TypeSwitch             // Option only used to set a flag.
)

type optionDef struct {
	create func(string, []Option) error
	ty     int
}

var options = map[string]optionDef{}

var lineNumber int

func getOptionType(name string) int {
	opt, ok := options[name]
	if !ok {
		return 0
	}
	return opt.ty
}

// RegisterOption registers a single-value option, called from init.
func RegisterOption(name string, fn func(string, []Option) error) {
	name = strings.ToUpper(name)
	options[name] = optionDef{create: fn, ty: TypeOption}
}

// RegisterOptions registers a list-valued option, called from init.
func RegisterOptions(name string, fn func(string, []Option) error) {
	name = strings.ToUpper(name)
	options[name] = optionDef{create: fn, ty: TypeOptions}
}

// RegisterSwitch registers a flag-only option, called from init.
func RegisterSwitch(name string, fn func(string, []Option) error) {
	name = strings.ToUpper(name)
	options[name] = optionDef{create: fn, ty: TypeSwitch}
}

func createOption(name string, first *FirstOption) error {
	name = strings.ToUpper(name)
	opt, ok := options[name]
	if !ok {
		return errors.New("unknown option: " + name)
	}
	if opt.ty != TypeOption {
		return errors.New("not a single-value option: " + name)
	}
	return opt.create(first.value, nil)
}

func createOptions(name string, first *FirstOption, values []Option) error {
	name = strings.ToUpper(name)
	opt, ok := options[name]
	if !ok {
		return errors.New("unknown option: " + name)
	}
	if opt.ty != TypeOptions {
		return errors.New("not a list-value option: " + name)
	}
	return opt.create(first.value, values)
}

func createSwitch(name string) error {
	name = strings.ToUpper(name)
	opt, ok := options[name]
	if !ok {
		return errors.New("unknown switch: " + name)
	}
	if opt.ty != TypeSwitch {
		return errors.New("not a switch option: " + name)
	}
	return opt.create("", nil)
}

// LoadConfigFile reads and applies every option line in name.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

// parseLine parses and applies one configuration line.
func (line *optionLine) parseLine() error {
	model := line.parseModel()
	if model == nil {
		return nil
	}
	switch getOptionType(model.model) {
	case TypeOption:
		first := line.parseFirst()
		line.skipSpace()
		if !line.isEOL() || first == nil {
			return fmt.Errorf("option %s not followed by a value, line %d", model.model, lineNumber)
		}
		return createOption(model.model, first)

	case TypeOptions:
		first := line.parseFirst()
		if first == nil {
			return fmt.Errorf("option %s not followed by a value, line %d", model.model, lineNumber)
		}
		values, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createOptions(model.model, first, values)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch %s followed by a value, line %d", model.model, lineNumber)
		}
		return createSwitch(model.model)

	case 0:
		return fmt.Errorf("unregistered option %s, line %d", model.model, lineNumber)
	}
	return nil
}

// Skip forward over line until a non-whitespace character is found.
func (line *optionLine) skipSpace() {
	for {
		if line.pos >= len(line.line) {
			return
		}
		if unicode.IsSpace(rune(line.line[line.pos])) {
			line.pos++
			continue
		}
		return
	}
}

// isEOL reports whether the cursor is at the end of the line or a comment.
func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// getNext returns the next letter or digit in line, 0 if EOL or space.
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

// getPeek looks at the next character without consuming it.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseModel parses the option name that starts a line.
func (line *optionLine) parseModel() *modelName {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	model := modelName{}
	for {
		if line.isEOL() {
			break
		}
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) {
			model.model += string([]byte{by})
			line.pos++
			continue
		}
		break
	}
	model.model = strings.ToUpper(model.model)
	return &model
}

// parseFirst parses the bare value following the option name.
func (line *optionLine) parseFirst() *FirstOption {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	value := ""
	for {
		if line.isEOL() {
			break
		}
		by := line.line[line.pos]
		if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) {
			value += string([]byte{by})
			line.pos++
			continue
		}
		break
	}
	return &FirstOption{value: value}
}

// parseQuoteString parses a "quoted" or bare string value.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0 || by == ',') {
			return value, true
		}

		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// getName parses an option name within a list of values.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) {
		if !line.isEOL() {
			return "", fmt.Errorf("invalid option encountered, line %d [%d]", lineNumber, line.pos)
		}
		return "", nil
	}
	value := ""
	for {
		value += string([]byte{by})
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}
	return value, nil
}

// parseOption parses one comma-separated value within an options list.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}
	if line.isEOL() {
		return &option, nil
	}

	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string, line %d [%d]", lineNumber, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()
	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, &v)
		}
		line.skipSpace()
	}
	return &option, nil
}

// parseOptions collects every value in the remainder of a line.
func (line *optionLine) parseOptions() ([]Option, error) {
	var values []Option
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		values = append(values, *option)
	}
	return values, nil
}
