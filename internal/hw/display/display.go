// Package display holds the 4-character text contract of the front panel
// and the 7-segment glyph table used to render it.
package display

// Width is the number of panel characters.
const Width = 4

// Normalize fits s to the panel: longer text is truncated, shorter text is
// right-padded with spaces.
func Normalize(s string) string {
	buf := [Width]byte{' ', ' ', ' ', ' '}
	for i := 0; i < Width && i < len(s); i++ {
		buf[i] = s[i]
	}
	return string(buf[:])
}

// Glyph returns the segment pattern for c, bits a..g,dp low to high. The
// decimal point stays off. Unknown characters render blank, '*' renders as
// a full '8' so masked PIN entry is visibly active.
func Glyph(c byte) byte {
	switch c {
	case '0':
		return 0b00111111
	case '1':
		return 0b00000110
	case '2':
		return 0b01011011
	case '3':
		return 0b01001111
	case '4':
		return 0b01100110
	case '5':
		return 0b01101101
	case '6':
		return 0b01111101
	case '7':
		return 0b00000111
	case '8':
		return 0b01111111
	case '9':
		return 0b01101111
	case '-':
		return 0b01000000
	case '_':
		return 0b00001000
	case ' ':
		return 0b00000000
	case 'A', 'a':
		return 0b01110111
	case 'b':
		return 0b01111100
	case 'C', 'c':
		return 0b00111001
	case 'd':
		return 0b01011110
	case 'E', 'e':
		return 0b01111001
	case 'F', 'f':
		return 0b01110001
	case 'H', 'h':
		return 0b01110100
	case 'I', 'i':
		return 0b00000110
	case 'L', 'l':
		return 0b00111000
	case 'N', 'n':
		return 0b01010100
	case 'O', 'o':
		return 0b00111111
	case 'P', 'p':
		return 0b01110011
	case 'U', 'u':
		return 0b00111110
	case '*':
		return 0b01111111
	default:
		return 0b00000000
	}
}

// Frame renders s as the four segment bytes of one refresh frame.
func Frame(s string) [Width]byte {
	text := Normalize(s)
	var out [Width]byte
	for i := 0; i < Width; i++ {
		out[i] = Glyph(text[i])
	}
	return out
}

// Text is the simplest panel: it remembers the last normalized text. It
// backs headless deployments and tests.
type Text struct {
	current string
}

// SetText implements the lock display contract.
func (d *Text) SetText(s string) { d.current = Normalize(s) }

// Current returns the text on the panel, always Width characters.
func (d *Text) Current() string {
	if d.current == "" {
		return Normalize("")
	}
	return d.current
}

// Recorder captures every text shown, for tests that assert on sequences.
type Recorder struct {
	Texts []string
}

func (r *Recorder) SetText(s string) { r.Texts = append(r.Texts, Normalize(s)) }
