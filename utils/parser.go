package utils

import (
	"regexp"
	"strings"
)

// ProductIDWidth is the zero-padded width of product ids in shop URLs.
const ProductIDWidth = 12

// anchorRegex finds the product id slot of a sample URL.
var anchorRegex = regexp.MustCompile(`\d{12}`)

// CleanProductID strips quotes and surrounding blanks left by spreadsheet exports.
func CleanProductID(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))
}

// PadProductID left-pads id with zeros to ProductIDWidth. Longer ids are kept.
func PadProductID(id string) string {
	if len(id) >= ProductIDWidth {
		return id
	}
	return strings.Repeat("0", ProductIDWidth-len(id)) + id
}

// HasProductAnchor reports whether sampleURL contains a 12-digit run.
func HasProductAnchor(sampleURL string) bool {
	return anchorRegex.MatchString(sampleURL)
}

// ProductURL replaces the first 12-digit run of sampleURL with paddedID.
func ProductURL(sampleURL, paddedID string) string {
	loc := anchorRegex.FindStringIndex(sampleURL)
	if loc == nil {
		return sampleURL
	}
	return sampleURL[:loc[0]] + paddedID + sampleURL[loc[1]:]
}
