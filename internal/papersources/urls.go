package papersources

import (
	"net/url"
	"strings"
)

// ResolveURL turns ref into an absolute URL against base. Blank refs yield nil.
// Absolute and scheme-relative refs pass through (the latter gain https:).
func ResolveURL(base, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return &ref
	}
	if strings.HasPrefix(ref, "//") {
		abs := "https:" + ref
		return &abs
	}

	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil || baseURL.Host == "" {
		return nil
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	abs := baseURL.ResolveReference(refURL).String()
	return &abs
}

// PrefixAssetURL joins a relative asset path onto assetBase by concatenation.
// Blank refs yield nil and anything starting with "http" is returned unchanged.
func PrefixAssetURL(assetBase, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	if strings.HasPrefix(ref, "http") {
		return &ref
	}
	abs := strings.TrimSuffix(assetBase, "/") + "/" + strings.TrimPrefix(ref, "/")
	return &abs
}

// CanonicalPaperURL returns the public page for a paper id.
func CanonicalPaperURL(siteBase, id string) string {
	return strings.TrimSuffix(siteBase, "/") + "/abs/" + url.PathEscape(strings.TrimSpace(id))
}
