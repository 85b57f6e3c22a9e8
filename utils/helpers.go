package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// UnknownDomain names the folder used when the sample URL has no host.
const UnknownDomain = "unknown-domain"

// folderRegex matches any character that is not safe in a folder name.
var folderRegex = regexp.MustCompile(`[^\p{L}\p{N}.\-_]+`)

// DomainFolderName returns the hostname of rawURL as a folder name.
func DomainFolderName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return UnknownDomain
	}
	name := folderRegex.ReplaceAllString(strings.ToLower(u.Hostname()), "-")
	if strings.Trim(name, ".-") == "" {
		return UnknownDomain
	}
	return name
}

// CanonicalEncoding maps the accepted spellings of a CSV encoding name to
// "shift_jis" or "utf-8". An empty name means Shift-JIS. ok is false for
// anything else.
func CanonicalEncoding(name string) (canonical string, ok bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")) {
	case "", "shift_jis", "sjis", "shiftjis":
		return "shift_jis", true
	case "utf_8", "utf8":
		return "utf-8", true
	}
	return "", false
}
