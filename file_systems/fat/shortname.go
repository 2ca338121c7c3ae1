package fat

import (
	"fmt"
	"strings"

	"github.com/dargueta/sdfat"
)

// ShortName is an 8.3 file name as stored in a directory entry: eight bytes of
// base name and three of extension, uppercase and padded with spaces.
type ShortName [11]byte

const invalidNameChars = `|<>^+=?/[];,*"\`

var dotName = ShortName{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
var dotDotName = ShortName{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// ParseShortName converts one path component into an 8.3 name. Lowercase
// letters are folded to uppercase; at most one dot is allowed, and only
// printable ASCII other than the characters FAT reserves.
func ParseShortName(component string) (ShortName, error) {
	var name ShortName
	for i := range name {
		name[i] = ' '
	}

	i := 0
	maxIndex := 7
	for j := 0; j < len(component); j++ {
		c := component[j]
		if c == '.' {
			if maxIndex == 10 {
				return name, sdfat.ErrInvalidArgument.WithMessage(
					fmt.Sprintf("%q: only one dot is allowed in an 8.3 name", component))
			}
			maxIndex = 10
			i = 8
			continue
		}

		if strings.IndexByte(invalidNameChars, c) >= 0 || c < 0x21 || c > 0x7E {
			return name, sdfat.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("%q: character 0x%02X not allowed in a file name", component, c))
		}
		if i > maxIndex {
			return name, sdfat.ErrNameTooLong.WithMessage(
				fmt.Sprintf("%q doesn't fit in an 8.3 name", component))
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		name[i] = c
		i++
	}

	if name[0] == ' ' {
		return name, sdfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("%q: file name is empty", component))
	}
	return name, nil
}

// String formats the name the way it's usually written, e.g. "README.TXT".
func (name ShortName) String() string {
	base := strings.TrimRight(string(name[:8]), " ")
	if len(base) > 0 && base[0] == direntE5 {
		base = "\xe5" + base[1:]
	}
	ext := strings.TrimRight(string(name[8:]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// nextComponent splits the first component off a relative path, skipping the
// slashes after it.
func nextComponent(path string) (component, rest string) {
	end := strings.IndexByte(path, '/')
	if end < 0 {
		return path, ""
	}
	return path[:end], strings.TrimLeft(path[end:], "/")
}
