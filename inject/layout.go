package inject

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownLayout = errors.New("unknown keyboard layout")

// Keystroke is the physical key producing a character, and whether shift
// must be held for it.
type Keystroke struct {
	Code  uint16
	Shift bool
}

// Layout maps characters to keystrokes. Layouts are built once and never
// modified.
type Layout struct {
	Name string
	keys map[rune]Keystroke
}

func (l *Layout) Lookup(r rune) (Keystroke, bool) {
	k, ok := l.keys[r]
	return k, ok
}

// keyDef is one physical key: the character it types alone and with
// shift. Zero means the key produces nothing in that state.
type keyDef struct {
	code    uint16
	plain   rune
	shifted rune
}

func buildLayout(name string, defs []keyDef) *Layout {
	l := &Layout{Name: name, keys: make(map[rune]Keystroke, len(defs)*2)}
	for _, d := range defs {
		if d.plain != 0 {
			l.keys[d.plain] = Keystroke{Code: d.code}
		}
		if d.shifted != 0 {
			l.keys[d.shifted] = Keystroke{Code: d.code, Shift: true}
		}
	}
	return l
}

// Codes from linux/input-event-codes.h
var commonKeys = []keyDef{
	{16, 'q', 'Q'}, {17, 'w', 'W'}, {18, 'e', 'E'}, {19, 'r', 'R'},
	{20, 't', 'T'}, {22, 'u', 'U'}, {23, 'i', 'I'}, {24, 'o', 'O'},
	{25, 'p', 'P'}, {30, 'a', 'A'}, {31, 's', 'S'}, {32, 'd', 'D'},
	{33, 'f', 'F'}, {34, 'g', 'G'}, {35, 'h', 'H'}, {36, 'j', 'J'},
	{37, 'k', 'K'}, {38, 'l', 'L'}, {45, 'x', 'X'}, {46, 'c', 'C'},
	{47, 'v', 'V'}, {48, 'b', 'B'}, {49, 'n', 'N'}, {50, 'm', 'M'},
	{57, ' ', 0}, {28, '\n', 0}, {15, '\t', 0},
}

var usKeys = []keyDef{
	{21, 'y', 'Y'}, {44, 'z', 'Z'},
	{2, '1', '!'}, {3, '2', '@'}, {4, '3', '#'}, {5, '4', '$'},
	{6, '5', '%'}, {7, '6', '^'}, {8, '7', '&'}, {9, '8', '*'},
	{10, '9', '('}, {11, '0', ')'},
	{12, '-', '_'}, {13, '=', '+'}, {26, '[', '{'}, {27, ']', '}'},
	{43, '\\', '|'}, {39, ';', ':'}, {40, '\'', '"'}, {41, '`', '~'},
	{51, ',', '<'}, {52, '.', '>'}, {53, '/', '?'},
}

// German QWERTZ: y and z trade places, punctuation moves.
var deKeys = []keyDef{
	{44, 'y', 'Y'}, {21, 'z', 'Z'},
	{2, '1', '!'}, {3, '2', '"'}, {4, '3', '§'}, {5, '4', '$'},
	{6, '5', '%'}, {7, '6', '&'}, {8, '7', '/'}, {9, '8', '('},
	{10, '9', ')'}, {11, '0', '='},
	{12, 'ß', '?'}, {13, '´', '`'}, {26, 'ü', 'Ü'}, {27, '+', '*'},
	{43, '#', '\''}, {39, 'ö', 'Ö'}, {40, 'ä', 'Ä'}, {41, '^', '°'},
	{51, ',', ';'}, {52, '.', ':'}, {53, '-', '_'},
}

var layouts = map[string]*Layout{
	"us": buildLayout("us", append(append([]keyDef{}, commonKeys...), usKeys...)),
	"de": buildLayout("de", append(append([]keyDef{}, commonKeys...), deKeys...)),
}

func LookupLayout(name string) (*Layout, error) {
	l, ok := layouts[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownLayout, name, Layouts())
	}
	return l, nil
}

// Layouts returns the supported layout names, sorted.
func Layouts() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
