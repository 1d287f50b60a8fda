package encoder

import (
	"sort"
	"strings"
)

// ManifestName is the concat list file written into each scratch directory.
const ManifestName = "frames.txt"

// BuildManifest renders a concat-demuxer input list, one `file '<path>'` line
// per frame. Paths are emitted in lexical order, which equals arrival order for
// zero-padded frame names.
func BuildManifest(paths []string) []byte {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var b strings.Builder
	for i, p := range sorted {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("file '")
		b.WriteString(quoteConcatPath(p))
		b.WriteByte('\'')
	}
	return []byte(b.String())
}

// quoteConcatPath escapes single quotes the way the concat demuxer expects:
// close the quote, emit an escaped quote, reopen.
func quoteConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
