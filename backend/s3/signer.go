package s3

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Signature V2 is defined over HMAC-SHA1
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Signature Version 2. The canonical string is
//
//	VERB \n Content-MD5 \n Content-Type \n Date \n {canonicalized amz headers}{canonicalized resource}
//
// signed with HMAC-SHA1 over the secret key and base64-encoded. Pre-signed URLs use the same construction
// with the expiry epoch in place of the Date line and the signature carried in the query string.

// subresources is the standard set of bucket/object configuration facets that participate in the canonical
// resource. Query parameters outside this allowlist (prefix, marker, max-keys, ...) are not signed.
var subresources = map[string]struct{}{
	"acl":                          {},
	"delete":                       {},
	"lifecycle":                    {},
	"location":                     {},
	"logging":                      {},
	"notification":                 {},
	"partNumber":                   {},
	"policy":                       {},
	"requestPayment":               {},
	"response-cache-control":       {},
	"response-content-disposition": {},
	"response-content-encoding":    {},
	"response-content-language":    {},
	"response-content-type":        {},
	"response-expires":             {},
	"torrent":                      {},
	"uploadId":                     {},
	"uploads":                      {},
	"versionId":                    {},
	"versioning":                   {},
	"versions":                     {},
	"website":                      {},
}

// signV2 produces the Authorization header value "AWS {accessKey}:{signature}" for a request about to be
// sent. The caller must have set Date (and any Content-MD5/Content-Type/x-amz-*) headers first.
func signV2(verb string, headers http.Header, canonicalResource, accessKeyID, secretAccessKey string) string {
	stringToSign := strings.Join([]string{
		verb,
		headers.Get("Content-MD5"),
		headers.Get("Content-Type"),
		headers.Get("Date"),
		canonicalAmzHeaders(headers) + canonicalResource,
	}, "\n")

	return "AWS " + accessKeyID + ":" + signHMAC(stringToSign, secretAccessKey)
}

// signV2Query produces the signature for a pre-signed URL: the expiry epoch replaces the Date line and no
// amz headers participate (a browser fetching the URL sends none).
func signV2Query(verb, expires, canonicalResource, secretAccessKey string) string {
	stringToSign := strings.Join([]string{
		verb,
		"",
		"",
		expires,
		canonicalResource,
	}, "\n")

	return signHMAC(stringToSign, secretAccessKey)
}

func signHMAC(stringToSign, secretAccessKey string) string {
	mac := hmac.New(sha1.New, []byte(secretAccessKey))
	_, _ = mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// canonicalAmzHeaders renders the x-amz-* subset of headers: names lower-cased and sorted, multiple values
// trimmed and joined with commas, each header as "name:value\n".
func canonicalAmzHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	valuesByKey := make(map[string]string, len(headers))
	for k, vals := range headers {
		lk := strings.ToLower(strings.TrimSpace(k))
		if !strings.HasPrefix(lk, "x-amz-") {
			continue
		}
		cleanVals := make([]string, 0, len(vals))
		for _, v := range vals {
			cleanVals = append(cleanVals, strings.TrimSpace(v))
		}
		keys = append(keys, lk)
		valuesByKey[lk] = strings.Join(cleanVals, ",")
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(valuesByKey[k])
		b.WriteString("\n")
	}
	return b.String()
}

// canonicalResource builds the sub-resource-qualified resource path with exactly one leading slash.
// escapedPath must be the path-style form ("/bucket", "/bucket/key", or "/"): the bucket is always present
// in the canonical resource, even under virtual-host addressing where it travels in the Host header instead
// of the request path. Sub-resources are sorted; value-carrying ones keep their decoded value.
func canonicalResource(escapedPath string, query url.Values) string {
	resource := escapedPath
	if resource == "" {
		resource = "/"
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		if _, ok := subresources[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return resource
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := query.Get(k); v != "" {
			parts = append(parts, k+"="+v)
		} else {
			parts = append(parts, k)
		}
	}
	return resource + "?" + strings.Join(parts, "&")
}
