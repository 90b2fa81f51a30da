// Package htmlresults ingests a zip of per-paper HTML result files into
// object storage and marks the matching paper rows as processed.
package htmlresults

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	newStyleID = regexp.MustCompile(`(?i)(\d{4}\.\d{4,5})(v\d+)?`)
	oldStyleID = regexp.MustCompile(`(?i)([a-z\-]+/\d{7})(v\d+)?`)
)

// ArxivFromFilename finds an arXiv id in a file name's stem. New-style ids
// (2401.12345) are tried before old-style ones (hep-th/9901001). The version
// suffix, when present, is kept and lowercased.
func ArxivFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, re := range []*regexp.Regexp{newStyleID, oldStyleID} {
		m := re.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		return m[1] + strings.ToLower(m[2]), true
	}
	return "", false
}

// ArxivBase returns the version-less id found in id, if any.
func ArxivBase(id string) (string, bool) {
	for _, re := range []*regexp.Regexp{newStyleID, oldStyleID} {
		if m := re.FindStringSubmatch(id); m != nil {
			return m[1], true
		}
	}
	return "", false
}
