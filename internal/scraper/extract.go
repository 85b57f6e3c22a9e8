package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"ImageHarvester/internal/models"
)

// suffixPattern matches "<productID>[_<suffix>].jpg".
func suffixPattern(productID string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(productID) + `(?:_(\w+))?\.jpg`)
}

// SuffixFor derives the file suffix of an image source. Without a suffix group
// the element's position on the page is used.
func SuffixFor(productID, src string, index int) string {
	return suffixWith(suffixPattern(productID), src, index)
}

func suffixWith(re *regexp.Regexp, src string, index int) string {
	if m := re.FindStringSubmatch(src); m != nil && m[1] != "" {
		return m[1]
	}
	return strconv.Itoa(index)
}

// extractCandidates turns raw src attributes into candidates. Missing sources
// and sources that do not mention the product id (banners, logos) are dropped.
// Relative sources are resolved against pageURL.
func extractCandidates(productID, pageURL string, srcs []*string) []models.ImageCandidate {
	re := suffixPattern(productID)
	base, _ := url.Parse(pageURL)

	var out []models.ImageCandidate
	for idx, src := range srcs {
		if src == nil || *src == "" || !strings.Contains(*src, productID) {
			continue
		}
		out = append(out, models.ImageCandidate{
			URL:       resolve(base, *src),
			ProductID: productID,
			Suffix:    suffixWith(re, *src, idx),
		})
	}
	return out
}

func resolve(base *url.URL, src string) string {
	if base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil || ref.IsAbs() {
		return src
	}
	return base.ResolveReference(ref).String()
}
