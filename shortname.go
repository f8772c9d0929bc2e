package fat32

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/usbfat/fat32/checkpoint"
	"golang.org/x/text/encoding/charmap"
)

const (
	shortBaseLen = 8
	shortExtLen  = 3
	shortNameLen = shortBaseLen + shortExtLen

	// maxLongNameUnits is the maximum length of a long name in UTF-16 code units.
	maxLongNameUnits = 255

	// maxTailDigits bounds the "~N" numeric tail.
	maxTailDigits = 6
)

// invalidNameChars may appear neither in short nor in long names.
const invalidNameChars = "\"*/:<>?\\|"

// replacedChars are valid in long names but must become '_' in a short name.
const replacedChars = "+,;=[]"

// shortName is the 8.3 form generated for a new entry.
type shortName struct {
	raw      [shortNameLen]byte
	ntFlags  byte
	needsLFN bool
}

// validLongName checks that name can be stored as a directory entry name.
func validLongName(name string) error {
	if name == "" || name == "." || name == ".." {
		return checkpoint.Errorf(ErrInvalidName, "%q", name)
	}
	if !utf8.ValidString(name) {
		return checkpoint.Errorf(ErrInvalidName, "%q is not valid UTF-8", name)
	}
	if strings.TrimRight(name, " .") != name || strings.TrimLeft(name, " ") != name {
		return checkpoint.Errorf(ErrInvalidName, "%q has leading spaces or trailing spaces or dots", name)
	}

	units := 0
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidNameChars, r) {
			return checkpoint.Errorf(ErrInvalidName, "%q contains %q", name, r)
		}
		units++
		if r >= 0x10000 {
			units++
		}
	}
	if units > maxLongNameUnits {
		return checkpoint.Errorf(ErrInvalidName, "%q is longer than %d characters", name, maxLongNameUnits)
	}
	return nil
}

// letter case of a converted short name character
const (
	caseNone = iota
	caseLower
	caseUpper
)

type shortChar struct {
	b    byte
	kind int
}

// generateShortName derives the 8.3 name of name using the basis-name and numeric-tail rules.
// exists reports whether a short name is already taken in the directory.
func generateShortName(name string, exists func(raw [shortNameLen]byte) bool) (shortName, error) {
	var (
		chars   []shortChar
		lossy   bool
		leading = true
	)
	for _, r := range name {
		switch {
		case r == ' ':
			lossy = true
		case r == '.':
			if leading {
				lossy = true
			} else {
				chars = append(chars, shortChar{b: '.'})
			}
		case strings.ContainsRune(replacedChars, r):
			chars = append(chars, shortChar{b: '_'})
			lossy = true
			leading = false
		default:
			c, ok := toShortChar(r)
			switch {
			case !ok:
				c = shortChar{b: '_'}
				lossy = true
			case !c.restores(r):
				lossy = true
			}
			chars = append(chars, c)
			leading = false
		}
	}

	dot := -1
	for i := len(chars) - 1; i >= 0; i-- {
		if chars[i].b == '.' {
			dot = i
			break
		}
	}

	var base, ext []shortChar
	for i, c := range chars {
		if i == dot {
			break
		}
		if c.b == '.' {
			lossy = true
			continue
		}
		if len(base) == shortBaseLen {
			lossy = true
			break
		}
		base = append(base, c)
	}
	if dot >= 0 {
		for _, c := range chars[dot+1:] {
			if len(ext) == shortExtLen {
				lossy = true
				break
			}
			ext = append(ext, c)
		}
	}
	if len(base) == 0 {
		base = []shortChar{{b: '_'}}
		lossy = true
	}

	if !lossy {
		raw := composeShortName(base, ext)
		if !exists(raw) {
			baseCase, extCase := letterCase(base), letterCase(ext)
			sn := shortName{raw: raw}
			switch {
			case baseCase < 0 || extCase < 0:
				sn.needsLFN = true
			default:
				if baseCase == caseLower {
					sn.ntFlags |= ntLowerBase
				}
				if extCase == caseLower {
					sn.ntFlags |= ntLowerExt
				}
			}
			return sn, nil
		}
	}

	for gen := 1; ; gen++ {
		tail := "~" + strconv.Itoa(gen)
		if len(tail)-1 > maxTailDigits {
			return shortName{}, checkpoint.Errorf(ErrInvalidName, "no free short name for %q", name)
		}
		keep := shortBaseLen - len(tail)
		if keep > len(base) {
			keep = len(base)
		}
		tailed := append(append([]shortChar{}, base[:keep]...), toShortChars(tail)...)
		raw := composeShortName(tailed, ext)
		if !exists(raw) {
			return shortName{raw: raw, needsLFN: true}, nil
		}
	}
}

// toShortChar converts a rune to its upper case code page 850 byte.
func toShortChar(r rune) (shortChar, bool) {
	kind := caseNone
	switch {
	case unicode.IsLower(r):
		kind = caseLower
	case unicode.IsUpper(r):
		kind = caseUpper
	}
	u := unicode.ToUpper(r)
	if u < utf8.RuneSelf {
		return shortChar{b: byte(u), kind: kind}, true
	}
	b, ok := charmap.CodePage850.EncodeRune(u)
	return shortChar{b: b, kind: kind}, ok
}

// restores reports whether decoding c with its case flag yields r again.
// Upper case mappings like dotless i to I do not.
func (c shortChar) restores(r rune) bool {
	u := rune(c.b)
	if c.b >= utf8.RuneSelf {
		u = charmap.CodePage850.DecodeByte(c.b)
	}
	if c.kind == caseLower {
		return unicode.ToLower(u) == r
	}
	return u == r
}

func toShortChars(s string) []shortChar {
	result := make([]shortChar, 0, len(s))
	for i := 0; i < len(s); i++ {
		result = append(result, shortChar{b: s[i]})
	}
	return result
}

// letterCase returns caseLower or caseUpper if all letters share that case, caseNone if there are
// no letters and -1 for mixed case.
func letterCase(chars []shortChar) int {
	result := caseNone
	for _, c := range chars {
		if c.kind == caseNone {
			continue
		}
		if result != caseNone && result != c.kind {
			return -1
		}
		result = c.kind
	}
	return result
}

func composeShortName(base, ext []shortChar) [shortNameLen]byte {
	var raw [shortNameLen]byte
	for i := range raw {
		raw[i] = ' '
	}
	for i, c := range base {
		raw[i] = c.b
	}
	for i, c := range ext {
		raw[shortBaseLen+i] = c.b
	}
	if raw[0] == entryDeleted {
		raw[0] = entryKanji
	}
	return raw
}

// formatShortName converts a raw 8.3 name to its display form, honouring the lower case flags.
func formatShortName(raw [shortNameLen]byte, ntFlags byte) string {
	switch string(raw[:]) {
	case ".          ":
		return "."
	case "..         ":
		return ".."
	}

	base := []byte(strings.TrimRight(string(raw[:shortBaseLen]), " "))
	ext := []byte(strings.TrimRight(string(raw[shortBaseLen:]), " "))
	if len(base) > 0 && base[0] == entryKanji {
		base[0] = entryDeleted
	}

	name := decodeCP850(base)
	if ntFlags&ntLowerBase != 0 {
		name = strings.ToLower(name)
	}
	if len(ext) > 0 {
		e := decodeCP850(ext)
		if ntFlags&ntLowerExt != 0 {
			e = strings.ToLower(e)
		}
		name += "." + e
	}
	return name
}

func decodeCP850(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(charmap.CodePage850.DecodeByte(c))
	}
	return sb.String()
}

// shortNameChecksum is the checksum stored in every long filename record of an entry.
func shortNameChecksum(raw [shortNameLen]byte) byte {
	var sum byte
	for _, c := range raw {
		sum = (sum&1)<<7 + sum>>1 + c
	}
	return sum
}
