package cloudfront

import "errors"

// ErrStaleETag is returned when an update or delete is submitted with a concurrency token the service no
// longer recognizes. The distribution changed since it was fetched; re-fetch for the current token and
// retry. The wrapped protocol error carries the provider's code and message.
var ErrStaleETag = errors.New("distribution etag is stale")
