package tsv

import (
	"bytes"
	"sort"
	"strings"
)

/*
Diary entries are stored one per line:

	date\ttitle\tcontent

The first line of a file is always Header. Title and content are escaped
so that tabs, newlines and carriage returns inside them don't break the
line/field structure:

	\  => \\
	tab => \t
	lf => \n
	cr => \r

Date is never escaped. It's a YYYYMMDD key so it can't contain any
of those characters.
*/

// Header is the first line of every diary file
const Header = "date\ttitle\tcontent"

// Entry is a diary entry for one calendar date
type Entry struct {
	// Date is YYYYMMDD
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Collection maps date to entry
type Collection map[string]*Entry

// Dates returns dates in ascending order
func (c Collection) Dates() []string {
	res := make([]string, 0, len(c))
	for date := range c {
		res = append(res, date)
	}
	sort.Strings(res)
	return res
}

// Sorted returns entries in ascending date order
func (c Collection) Sorted() []*Entry {
	var res []*Entry
	for _, date := range c.Dates() {
		res = append(res, c[date])
	}
	return res
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

func needsEscape(s string) bool {
	return strings.ContainsAny(s, "\\\t\n\r")
}

// Escape makes s safe to store as a single tab-separated field
func Escape(s string) string {
	if !needsEscape(s) {
		return s
	}
	// Replacer does a single left-to-right pass so backslashes it
	// inserts are never escaped a second time
	return escaper.Replace(s)
}

// Unescape reverses Escape.
// It decodes escape sequences in a single left-to-right pass, which
// is what makes `\\t` decode to `\t` (backslash, t) and not to
// backslash followed by a tab.
// Unknown sequences and a trailing backslash are kept as is.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') == -1 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]
		if c != '\\' || i+1 == n {
			sb.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '\\':
			sb.WriteByte('\\')
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(c)
			continue
		}
		i++
	}
	return sb.String()
}

// EncodeLine serializes e as a line, without the trailing newline
func EncodeLine(e *Entry) string {
	return e.Date + "\t" + Escape(e.Title) + "\t" + Escape(e.Content)
}

// DecodeLine parses a line created with EncodeLine.
// Returns false for blank lines and lines with less than 3 fields.
// Fields after the third are ignored.
func DecodeLine(line string) (*Entry, bool) {
	// tolerate files saved with CRLF line endings
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	parts := strings.SplitN(line, "\t", 4)
	if len(parts) < 3 {
		return nil, false
	}
	e := &Entry{
		Date:    parts[0],
		Title:   Unescape(parts[1]),
		Content: Unescape(parts[2]),
	}
	return e, true
}

// Marshal serializes a collection: header line followed by entries
// sorted by date. Every line, including the last, ends with a newline.
func Marshal(c Collection) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, e := range c.Sorted() {
		buf.WriteString(EncodeLine(e))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Parse parses data created with Marshal. The first line is assumed to
// be the header and is skipped. Invalid lines are skipped. If a date
// appears more than once, the last line wins.
func Parse(d []byte) Collection {
	res := Collection{}
	lines := strings.Split(string(d), "\n")
	for i := 1; i < len(lines); i++ {
		e, ok := DecodeLine(lines[i])
		if !ok {
			continue
		}
		res[e.Date] = e
	}
	return res
}

// HasHeader returns true if the first line of d is Header
func HasHeader(d []byte) bool {
	line := d
	if idx := bytes.IndexByte(d, '\n'); idx != -1 {
		line = d[:idx]
	}
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line) == Header
}
