package s3

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // mirrors the protocol's integrity header
	"crypto/sha1" //nolint:gosec // mirrors the protocol's signature scheme
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeObject is one stored object in the fake service.
type fakeObject struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	storageClass string
	lastModified time.Time
}

// fakeService is an in-memory S3-compatible provider for tests. It authorizes every request by
// recomputing the V2 signature from the raw request with its own canonicalization, so a client bug in
// signing or resource escaping fails loudly instead of being mirrored.
type fakeService struct {
	accessKey string
	secret    string

	mu         sync.Mutex
	objects    map[string]map[string]*fakeObject
	regions    map[string]string
	acls       map[string][]byte
	logging    map[string][]byte
	bucketACLs map[string]string
	owner      Owner
	pageSize   int
	clock      func() time.Time

	// failure hooks
	failDeletes  map[string]string // key -> error code returned by batch delete
	truncateBody bool              // abort GET bodies halfway through

	calls []string
}

func newFakeService(accessKey, secret string) *fakeService {
	return &fakeService{
		accessKey:   accessKey,
		secret:      secret,
		objects:     make(map[string]map[string]*fakeObject),
		regions:     make(map[string]string),
		acls:        make(map[string][]byte),
		logging:     make(map[string][]byte),
		bucketACLs:  make(map[string]string),
		owner:       Owner{ID: "fake-owner-id", DisplayName: "fake-owner"},
		pageSize:    1000,
		failDeletes: make(map[string]string),
	}
}

func (f *fakeService) start() *httptest.Server {
	return httptest.NewServer(f)
}

func (f *fakeService) seed(bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket]; !ok {
		f.objects[bucket] = make(map[string]*fakeObject)
	}
}

func (f *fakeService) put(bucket, key string, data []byte) {
	f.seed(bucket)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket][key] = &fakeObject{
		data:         data,
		contentType:  "application/octet-stream",
		lastModified: f.now(),
	}
}

func (f *fakeService) setClock(clock func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = clock
}

func (f *fakeService) setPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

func (f *fakeService) setTruncateBody(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncateBody = v
}

func (f *fakeService) setFailDelete(key, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDeletes[key] = code
}

func (f *fakeService) objectCount(bucket string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects[bucket])
}

func (f *fakeService) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func (f *fakeService) now() time.Time {
	if f.clock != nil {
		return f.clock()
	}
	return time.Now()
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	bucket, key := splitFakePath(r.URL.Path)

	// service-level HEAD answers unauthenticated, with the fake's clock when one is pinned
	if r.Method == http.MethodHead && bucket == "" {
		if f.clock != nil {
			w.Header().Set("Date", f.clock().UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if !f.authorize(r) {
		f.writeError(w, http.StatusForbidden, "SignatureDoesNotMatch", "signature mismatch", r.URL.Path)
		return
	}

	switch {
	case bucket == "":
		f.serveListBuckets(w)
	case key == "":
		f.serveBucket(w, r, bucket)
	default:
		f.serveObject(w, r, bucket, key)
	}
}

/*
	Authorization
*/

// fakeSubresources is the slice of the allowlist this fake serves.
var fakeSubresources = []string{"acl", "delete", "location", "logging"}

func (f *fakeService) authorize(r *http.Request) bool {
	q := r.URL.Query()
	if sig := q.Get("Signature"); sig != "" {
		expiresStr := q.Get("Expires")
		expires, err := strconv.ParseInt(expiresStr, 10, 64)
		if err != nil || q.Get("AWSAccessKeyId") != f.accessKey {
			return false
		}
		if f.now().Unix() > expires {
			return false
		}
		canonical := r.Method + "\n\n\n" + expiresStr + "\n" + f.resource(r)
		return sig == f.sign(canonical)
	}

	canonical := r.Method + "\n" + r.Header.Get("Content-MD5") + "\n" + r.Header.Get("Content-Type") +
		"\n" + r.Header.Get("Date") + "\n" + f.amzHeaders(r) + f.resource(r)
	return r.Header.Get("Authorization") == "AWS "+f.accessKey+":"+f.sign(canonical)
}

func (f *fakeService) resource(r *http.Request) string {
	resource := r.URL.EscapedPath()
	q := r.URL.Query()
	var parts []string
	for _, name := range fakeSubresources {
		if q.Has(name) {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return resource
	}
	sort.Strings(parts)
	return resource + "?" + strings.Join(parts, "&")
}

func (f *fakeService) amzHeaders(r *http.Request) string {
	var names []string
	for name := range r.Header {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-amz-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		vals := r.Header.Values(name)
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.TrimSpace(v)
		}
		fmt.Fprintf(&b, "%s:%s\n", name, strings.Join(trimmed, ","))
	}
	return b.String()
}

func (f *fakeService) sign(s string) string {
	mac := hmac.New(sha1.New, []byte(f.secret))
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

/*
	Service and bucket handlers
*/

func (f *fakeService) serveListBuckets(w http.ResponseWriter) {
	result := listAllMyBucketsResult{Owner: f.owner}
	var names []string
	for name := range f.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		result.Buckets = append(result.Buckets, bucketEntry{
			Name:         name,
			CreationDate: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
	}
	f.writeXML(w, http.StatusOK, result)
}

func (f *fakeService) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	q := r.URL.Query()
	switch {
	case q.Has("location"):
		region := f.regions[bucket]
		f.writeXML(w, http.StatusOK, locationConstraint{Location: region})
	case q.Has("acl"):
		f.serveACL(w, r, bucket)
	case q.Has("logging"):
		f.serveLogging(w, r, bucket)
	case q.Has("delete") && r.Method == http.MethodPost:
		f.serveBatchDelete(w, r, bucket)
	case r.Method == http.MethodPut:
		if _, ok := f.objects[bucket]; ok {
			f.writeError(w, http.StatusConflict, "BucketAlreadyOwnedByYou", "already exists", "/"+bucket)
			return
		}
		f.objects[bucket] = make(map[string]*fakeObject)
		if acl := r.Header.Get("x-amz-acl"); acl != "" {
			f.bucketACLs[bucket] = acl
		}
		body, _ := io.ReadAll(r.Body)
		var cfg createBucketConfiguration
		if xml.Unmarshal(body, &cfg) == nil && cfg.LocationConstraint != "" {
			f.regions[bucket] = cfg.LocationConstraint
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		b, ok := f.objects[bucket]
		if !ok {
			f.writeError(w, http.StatusNotFound, "NoSuchBucket", "no such bucket", "/"+bucket)
			return
		}
		if len(b) > 0 {
			f.writeError(w, http.StatusConflict, "BucketNotEmpty", "bucket not empty", "/"+bucket)
			return
		}
		delete(f.objects, bucket)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet:
		f.serveList(w, r, bucket)
	default:
		f.writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "not allowed", "/"+bucket)
	}
}

func (f *fakeService) serveList(w http.ResponseWriter, r *http.Request, bucket string) {
	b, ok := f.objects[bucket]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchBucket", "no such bucket", "/"+bucket)
		return
	}

	q := r.URL.Query()
	prefix, marker, delimiter := q.Get("prefix"), q.Get("marker"), q.Get("delimiter")
	maxKeys := f.pageSize
	if mk, err := strconv.Atoi(q.Get("max-keys")); err == nil && mk > 0 && mk < maxKeys {
		maxKeys = mk
	}

	var keys []string
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := listBucketResult{Name: bucket, Prefix: prefix, Marker: marker, Delimiter: delimiter, MaxKeys: maxKeys}
	count := 0
	lastCP := ""
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) || (marker != "" && k <= marker) {
			continue
		}
		isCP := false
		cp := ""
		if delimiter != "" {
			if i := strings.Index(k[len(prefix):], delimiter); i >= 0 {
				isCP = true
				cp = k[:len(prefix)+i+len(delimiter)]
			}
		}
		if isCP && cp == lastCP {
			continue
		}
		if count >= maxKeys {
			result.IsTruncated = true
			break
		}
		if isCP {
			result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: cp})
			lastCP = cp
		} else {
			obj := b[k]
			sum := md5.Sum(obj.data) //nolint:gosec // fake ETag
			result.Contents = append(result.Contents, listEntry{
				Key:          k,
				LastModified: obj.lastModified.UTC().Truncate(time.Second),
				ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
				Size:         int64(len(obj.data)),
				StorageClass: "STANDARD",
			})
		}
		count++
	}

	// NextMarker only travels when a delimiter was requested, like the reference provider; clients must
	// fall back to the last returned key otherwise.
	if result.IsTruncated && delimiter != "" {
		if n := len(result.Contents); n > 0 {
			result.NextMarker = result.Contents[n-1].Key
		}
		if n := len(result.CommonPrefixes); n > 0 && result.CommonPrefixes[n-1].Prefix > result.NextMarker {
			result.NextMarker = result.CommonPrefixes[n-1].Prefix
		}
	}
	f.writeXML(w, http.StatusOK, result)
}

func (f *fakeService) serveACL(w http.ResponseWriter, r *http.Request, target string) {
	switch r.Method {
	case http.MethodGet:
		if stored, ok := f.acls[target]; ok {
			f.writeRaw(w, http.StatusOK, stored)
			return
		}
		f.writeXML(w, http.StatusOK, accessControlPolicyXML{
			Owner: f.owner,
			Grants: []grantXML{{
				Grantee:    granteeXML{ID: f.owner.ID, DisplayName: f.owner.DisplayName},
				Permission: PermissionFullControl,
			}},
		})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		var policy accessControlPolicyXML
		if xml.Unmarshal(body, &policy) != nil {
			f.writeError(w, http.StatusBadRequest, "MalformedACLError", "bad policy", "/"+target)
			return
		}
		f.acls[target] = body
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeService) serveLogging(w http.ResponseWriter, r *http.Request, bucket string) {
	switch r.Method {
	case http.MethodGet:
		if stored, ok := f.logging[bucket]; ok {
			f.writeRaw(w, http.StatusOK, stored)
			return
		}
		f.writeXML(w, http.StatusOK, bucketLoggingStatus{})
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.logging[bucket] = body
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeService) serveBatchDelete(w http.ResponseWriter, r *http.Request, bucket string) {
	if r.Header.Get("Content-MD5") == "" {
		f.writeError(w, http.StatusBadRequest, "InvalidRequest", "Content-MD5 is required", "/"+bucket)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var batch deleteBatch
	if xml.Unmarshal(body, &batch) != nil {
		f.writeError(w, http.StatusBadRequest, "MalformedXML", "bad delete body", "/"+bucket)
		return
	}

	b := f.objects[bucket]
	var result deleteResult
	for _, obj := range batch.Objects {
		if code, fail := f.failDeletes[obj.Key]; fail {
			result.Errors = append(result.Errors, deleteResultErr{Key: obj.Key, Code: code, Message: "delete refused"})
			continue
		}
		delete(b, obj.Key)
	}
	f.writeXML(w, http.StatusOK, result)
}

/*
	Object handlers
*/

func (f *fakeService) serveObject(w http.ResponseWriter, r *http.Request, bucket, key string) {
	if r.URL.Query().Has("acl") {
		f.serveACL(w, r, bucket+"/"+key)
		return
	}

	b, ok := f.objects[bucket]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchBucket", "no such bucket", "/"+bucket)
		return
	}

	switch r.Method {
	case http.MethodPut:
		if src := r.Header.Get("x-amz-copy-source"); src != "" {
			f.serveCopy(w, r, b, key, src)
			return
		}
		data, _ := io.ReadAll(r.Body)
		if want := r.Header.Get("Content-MD5"); want != "" {
			sum := md5.Sum(data) //nolint:gosec // integrity check
			if base64.StdEncoding.EncodeToString(sum[:]) != want {
				f.writeError(w, http.StatusBadRequest, "BadDigest", "content-md5 mismatch", "/"+bucket+"/"+key)
				return
			}
		}
		b[key] = &fakeObject{
			data:         data,
			contentType:  r.Header.Get("Content-Type"),
			metadata:     metadataFromHeaders(r.Header),
			storageClass: r.Header.Get("x-amz-storage-class"),
			lastModified: f.now(),
		}
		sum := md5.Sum(data) //nolint:gosec // fake ETag
		w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		w.WriteHeader(http.StatusOK)

	case http.MethodGet, http.MethodHead:
		obj, ok := b[key]
		if !ok {
			f.writeError(w, http.StatusNotFound, "NoSuchKey", "no such key", "/"+bucket+"/"+key)
			return
		}
		sum := md5.Sum(obj.data) //nolint:gosec // fake ETag
		h := w.Header()
		h.Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		h.Set("Content-Type", obj.contentType)
		h.Set("Last-Modified", obj.lastModified.UTC().Format(http.TimeFormat))
		if obj.storageClass != "" {
			h.Set("x-amz-storage-class", obj.storageClass)
		}
		for k, v := range obj.metadata {
			h.Set("x-amz-meta-"+k, v)
		}

		data := obj.data
		status := http.StatusOK
		if rng := r.Header.Get("Range"); rng != "" {
			start, end, ok := parseFakeRange(rng, int64(len(data)))
			if !ok {
				f.writeError(w, http.StatusRequestedRangeNotSatisfiable, "InvalidRange", "bad range", "/"+bucket+"/"+key)
				return
			}
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			data = data[start : end+1]
			status = http.StatusPartialContent
		}
		h.Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			if f.truncateBody && len(data) > 1 {
				_, _ = w.Write(data[:len(data)/2])
				if fl, ok := w.(http.Flusher); ok {
					fl.Flush()
				}
				panic(http.ErrAbortHandler)
			}
			_, _ = w.Write(data)
		}

	case http.MethodDelete:
		delete(b, key)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeService) serveCopy(w http.ResponseWriter, r *http.Request, dst map[string]*fakeObject, dstKey, src string) {
	unescaped, err := url.PathUnescape(src)
	if err != nil {
		f.writeError(w, http.StatusBadRequest, "InvalidArgument", "bad copy source", src)
		return
	}
	srcBucket, srcKey := splitFakePath(unescaped)
	srcObj, ok := f.objects[srcBucket][srcKey]
	if !ok {
		f.writeError(w, http.StatusNotFound, "NoSuchKey", "no such copy source", unescaped)
		return
	}

	cp := &fakeObject{
		data:         append([]byte(nil), srcObj.data...),
		contentType:  srcObj.contentType,
		metadata:     srcObj.metadata,
		storageClass: r.Header.Get("x-amz-storage-class"),
		lastModified: f.now(),
	}
	if r.Header.Get("x-amz-metadata-directive") == "REPLACE" {
		cp.contentType = r.Header.Get("Content-Type")
		cp.metadata = metadataFromHeaders(r.Header)
	}
	dst[dstKey] = cp

	sum := md5.Sum(cp.data) //nolint:gosec // fake ETag
	f.writeXML(w, http.StatusOK, copyObjectResult{
		ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
		LastModified: cp.lastModified.UTC().Truncate(time.Second),
	})
}

/*
	Response helpers
*/

func (f *fakeService) writeXML(w http.ResponseWriter, status int, v any) {
	body, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	f.writeRaw(w, status, body)
}

func (f *fakeService) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (f *fakeService) writeError(w http.ResponseWriter, status int, code, message, resource string) {
	f.writeXML(w, status, errorResponse{Code: code, Message: message, Resource: resource, RequestID: "fake-request-id"})
}

func splitFakePath(p string) (bucket, key string) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "", ""
	}
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}

func metadataFromHeaders(h http.Header) map[string]string {
	var meta map[string]string
	for name, vals := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "x-amz-meta-") && len(vals) > 0 {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[strings.TrimPrefix(lower, "x-amz-meta-")] = vals[0]
		}
	}
	return meta
}

func parseFakeRange(rng string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(rng, "bytes=")
	if !found {
		return 0, 0, false
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true
}
