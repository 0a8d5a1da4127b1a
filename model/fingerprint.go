package model

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the ordered document ids and texts of a corpus. Equal
// corpora produce equal fingerprints; it is used as the cache key of result
// bundles.
func Fingerprint(docs []Document) string {
	d := xxhash.New()
	var sep = []byte{0}
	for _, doc := range docs {
		_, _ = d.WriteString(doc.ID)
		_, _ = d.Write(sep)
		_, _ = d.WriteString(doc.Text)
		_, _ = d.Write(sep)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
