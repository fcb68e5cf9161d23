package utils

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// ErrBadBucketName constant is returned when a bucket name fails validation
	ErrBadBucketName = "bucket name is invalid - must be 3 to 63 lowercase letters, digits, dots, or hyphens, beginning and ending with a letter or digit"
	// ErrBadObjectKey constant is returned when an object key fails validation
	ErrBadObjectKey = "object key is invalid - may not be empty, begin with a slash, or contain a double slash"
	// ErrBadPrefix constant is returned when a key prefix fails validation
	ErrBadPrefix = "prefix is invalid - may not include a leading slash"
)

// regex to test whether the last character is a '/'
var hasTrailingSlash = regexp.MustCompile("/$")

// regex to test whether the first character is a '/'
var hasLeadingSlash = regexp.MustCompile("^/")

// regex to ensure prefix doesn't have leading '/', '.', '..', etc...
var prefixCleanRegex = regexp.MustCompile("^[/.]*")

// bucket names follow the original (pre-2018) S3 rules, which every compatible service accepts
var bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// RemoveTrailingSlash removes trailing slash, if any
func RemoveTrailingSlash(path string) string {
	return strings.TrimRight(path, "/")
}

// RemoveLeadingSlash removes leading slash, if any
func RemoveLeadingSlash(path string) string {
	return strings.TrimLeft(path, "/")
}

// EnsureTrailingSlash adds a trailing slash if needed. Only ever uses / since it's used for object keys, never a
// Windows OS path. An empty string stays empty so a blank prefix doesn't become "/".
func EnsureTrailingSlash(dir string) string {
	if dir == "" || hasTrailingSlash.MatchString(dir) {
		return dir
	}
	return dir + "/"
}

// EnsureLeadingSlash is like EnsureTrailingSlash except that it adds the leading slash if needed.
func EnsureLeadingSlash(dir string) string {
	if hasLeadingSlash.MatchString(dir) {
		return dir
	}
	return "/" + dir
}

// CleanPrefix resolves relative dot pathing, removing any leading . or / and removes any trailing /
func CleanPrefix(prefix string) string {
	prefix = prefixCleanRegex.ReplaceAllString(prefix, "")
	return strings.TrimRight(prefix, "/")
}

// ValidateBucketName ensures a bucket name is acceptable to S3-compatible services. IP-address-shaped names are
// rejected by AWS but accepted by most other services, so they pass here.
func ValidateBucketName(bucket string) error {
	if !bucketNameRegex.MatchString(bucket) || strings.Contains(bucket, "..") {
		return errors.New(ErrBadBucketName)
	}
	return nil
}

// ValidateObjectKey ensures an object key is non-empty and shaped like a key rather than a rooted path. Keys are
// always relative to the bucket (or a configured prefix), so a leading slash is a caller bug, not a valid name.
func ValidateObjectKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "//") {
		return errors.New(ErrBadObjectKey)
	}
	return nil
}

// ValidatePrefix ensures a listing prefix has no leading slash. Empty prefixes are fine (list the whole bucket),
// and trailing slashes are meaningful ("virtual directory"), so both are allowed.
func ValidatePrefix(prefix string) error {
	if strings.HasPrefix(prefix, "/") {
		return errors.New(ErrBadPrefix)
	}
	return nil
}

// JoinKey joins a configured prefix and an object name into a full key, collapsing any doubled slash at the seam.
func JoinKey(prefix, name string) string {
	if prefix == "" {
		return RemoveLeadingSlash(name)
	}
	return EnsureTrailingSlash(RemoveLeadingSlash(prefix)) + RemoveLeadingSlash(name)
}
