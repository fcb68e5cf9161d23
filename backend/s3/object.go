package s3

import (
	"context"
	"crypto/md5" //nolint:gosec // Content-MD5 is an integrity header, not a security control
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/utils"
)

// maxBatchDeleteSize is the provider's per-request cap on batch delete keys.
const maxBatchDeleteSize = 1000

// PutOptions shapes how an object is written. The zero value uploads with a Content-Type detected from
// the key's extension and no additional headers.
type PutOptions struct {
	// ContentType overrides extension-based detection.
	ContentType string

	// ContentMD5 is a precomputed base64 MD5 of the body. When empty, PutObject and PutObjectFile
	// compute it; PutObjectStream never does (the stream cannot be re-read).
	ContentMD5 string

	// Metadata is stored with the object as x-amz-meta-* headers. Keys come back lower-cased.
	Metadata map[string]string

	// StorageClass selects the provider storage class (STANDARD, REDUCED_REDUNDANCY, ...).
	StorageClass string

	// ServerSideEncryption asks the provider to encrypt at rest (AES256).
	ServerSideEncryption bool

	// ACL is a canned ACL applied to the object (ACLPrivate and friends).
	ACL string

	// Headers passes additional request headers through verbatim.
	Headers http.Header
}

// GetOptions tunes GetObject and GetObjectFile.
type GetOptions struct {
	// Range requests a byte subset, e.g. "bytes=0-1023". The service answers 206 and the returned
	// ObjectInfo.Size reflects the transferred range, not the whole object.
	Range string
}

// DeleteError describes one key a batch delete failed to remove.
type DeleteError struct {
	Key     string
	Code    string
	Message string
}

/*
	Wire shapes
*/

type copyObjectResult struct {
	XMLName      xml.Name  `xml:"CopyObjectResult"`
	ETag         string    `xml:"ETag"`
	LastModified time.Time `xml:"LastModified"`
}

type deleteBatch struct {
	XMLName xml.Name      `xml:"Delete"`
	Quiet   bool          `xml:"Quiet"`
	Objects []deleteEntry `xml:"Object"`
}

type deleteEntry struct {
	Key string `xml:"Key"`
}

type deleteResult struct {
	XMLName xml.Name          `xml:"DeleteResult"`
	Errors  []deleteResultErr `xml:"Error"`
}

type deleteResultErr struct {
	Key     string `xml:"Key"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

/*
	Write operations
*/

// PutObject writes body to bucket/key. The Content-MD5 integrity header is computed unless opts supplies
// one.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte, opts *PutOptions) error {
	if err := validateBucketKey(bucket, key); err != nil {
		return err
	}

	r := newRequest(http.MethodPut, bucket, key)
	opts = applyPutOptions(r, key, opts)
	r.setBodyBytes(body, opts.ContentMD5 == "")
	_, _, err := c.doDiscard(ctx, r, http.StatusOK)
	return err
}

// PutObjectFile uploads the local file at localPath to bucket/key, streaming it in bounded chunks. The
// file is read twice when no Content-MD5 was supplied: once to hash, once to send.
func (c *Client) PutObjectFile(ctx context.Context, bucket, key, localPath string, opts *PutOptions) error {
	if err := validateBucketKey(bucket, key); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	r := newRequest(http.MethodPut, bucket, key)
	opts = applyPutOptions(r, key, opts)
	if opts.ContentMD5 == "" {
		sum, err := fileMD5(f)
		if err != nil {
			return err
		}
		r.setHeader("Content-MD5", sum)
	}

	r.setBodyReader(f, fi.Size())
	_, _, err = c.doDiscard(ctx, r, http.StatusOK)
	return err
}

// PutObjectStream writes size bytes from body to bucket/key. The length must be known and non-negative;
// chunked uploads are not supported by the signing scheme.
func (c *Client) PutObjectStream(ctx context.Context, bucket, key string, body io.Reader, size int64, opts *PutOptions) error {
	if err := validateBucketKey(bucket, key); err != nil {
		return err
	}
	if body == nil {
		return objstore.ErrNilBody
	}
	if size < 0 {
		return objstore.ErrUnknownLength
	}

	r := newRequest(http.MethodPut, bucket, key)
	applyPutOptions(r, key, opts)
	r.setBodyReader(body, size)
	_, _, err := c.doDiscard(ctx, r, http.StatusOK)
	return err
}

/*
	Read operations
*/

// GetObject streams the object at bucket/key to w and returns its metadata from the response headers.
func (c *Client) GetObject(ctx context.Context, bucket, key string, w io.Writer, opts *GetOptions) (*objstore.ObjectInfo, error) {
	if err := validateBucketKey(bucket, key); err != nil {
		return nil, err
	}

	r := newRequest(http.MethodGet, bucket, key)
	accepted := []int{http.StatusOK}
	if opts != nil && opts.Range != "" {
		r.setHeader("Range", opts.Range)
		accepted = append(accepted, http.StatusPartialContent)
	}

	resp, err := c.do(ctx, r, accepted...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.body.Close() }()

	if _, err := io.CopyBuffer(w, resp.body, c.copyBuffer()); err != nil {
		return nil, fmt.Errorf("object body copy: %w", err)
	}
	return objectInfoFromHeaders(key, resp.headers), nil
}

// GetObjectFile downloads the object at bucket/key to a fresh file at localPath. The destination is never
// left partially written: on any failure, close included, it is removed.
func (c *Client) GetObjectFile(ctx context.Context, bucket, key, localPath string, opts *GetOptions) (*objstore.ObjectInfo, error) {
	if err := validateBucketKey(bucket, key); err != nil {
		return nil, err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return nil, err
	}

	info, err := c.GetObject(ctx, bucket, key, f, opts)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(localPath)
		return nil, err
	}
	return info, nil
}

// StatObject returns metadata for the object at bucket/key. A missing object is the normal (nil, nil)
// outcome; every other failure is a non-nil error.
func (c *Client) StatObject(ctx context.Context, bucket, key string) (*objstore.ObjectInfo, error) {
	if err := validateBucketKey(bucket, key); err != nil {
		return nil, err
	}

	status, headers, err := c.doDiscard(ctx, newRequest(http.MethodHead, bucket, key),
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	return objectInfoFromHeaders(key, headers), nil
}

// ObjectExists returns boolean if the object exists in the bucket. Also returns an error if any.
func (c *Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	info, err := c.StatObject(ctx, bucket, key)
	return info != nil, err
}

/*
	Copy and delete
*/

// CopyOptions shapes a server-side copy. Supplying Metadata, ContentType, or Headers switches the
// metadata directive from COPY to REPLACE, so the destination gets exactly what is supplied here instead
// of the source's metadata.
type CopyOptions struct {
	Metadata     map[string]string
	ContentType  string
	StorageClass string
	ACL          string
	Headers      http.Header
}

// CopyObject copies srcBucket/srcKey to dstBucket/dstKey server-side and returns the destination's ETag
// and modification time.
func (c *Client) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string, opts *CopyOptions) (*objstore.ObjectInfo, error) {
	if err := validateBucketKey(srcBucket, srcKey); err != nil {
		return nil, err
	}
	if err := validateBucketKey(dstBucket, dstKey); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &CopyOptions{}
	}

	r := newRequest(http.MethodPut, dstBucket, dstKey)
	r.setHeader("x-amz-copy-source", escapePath("/"+srcBucket+"/"+srcKey))

	directive := "COPY"
	if len(opts.Metadata) > 0 || opts.ContentType != "" || len(opts.Headers) > 0 {
		directive = "REPLACE"
		if opts.ContentType != "" {
			r.setHeader("Content-Type", opts.ContentType)
		}
		for k, v := range opts.Metadata {
			r.setHeader("x-amz-meta-"+k, v)
		}
		for k, vals := range opts.Headers {
			for _, v := range vals {
				r.headers.Add(k, v)
			}
		}
	}
	r.setHeader("x-amz-metadata-directive", directive)
	if opts.StorageClass != "" {
		r.setHeader("x-amz-storage-class", opts.StorageClass)
	}
	if opts.ACL != "" {
		r.setHeader("x-amz-acl", opts.ACL)
	}

	var raw copyObjectResult
	if err := c.doXML(ctx, r, &raw, http.StatusOK); err != nil {
		return nil, err
	}
	return &objstore.ObjectInfo{
		Key:          dstKey,
		ETag:         strings.Trim(raw.ETag, `"`),
		LastModified: raw.LastModified,
	}, nil
}

// DeleteObject removes the object at bucket/key.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := validateBucketKey(bucket, key); err != nil {
		return err
	}
	_, _, err := c.doDiscard(ctx, newRequest(http.MethodDelete, bucket, key), http.StatusNoContent)
	return err
}

// DeleteObjects removes keys from bucket in quiet-mode batches and returns the per-key failures. A nil
// slice and nil error means every key is gone (deleting an absent key is a success).
func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) ([]DeleteError, error) {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := utils.ValidateObjectKey(key); err != nil {
			return nil, fmt.Errorf("%w: %q", err, key)
		}
	}

	var failures []DeleteError
	for len(keys) > 0 {
		batch := keys
		if len(batch) > maxBatchDeleteSize {
			batch = batch[:maxBatchDeleteSize]
		}
		keys = keys[len(batch):]

		payload := deleteBatch{Quiet: true, Objects: make([]deleteEntry, 0, len(batch))}
		for _, key := range batch {
			payload.Objects = append(payload.Objects, deleteEntry{Key: key})
		}
		body, err := xml.Marshal(payload)
		if err != nil {
			return failures, err
		}

		r := newRequest(http.MethodPost, bucket, "").setSubresource("delete")
		r.setHeader("Content-Type", "application/xml")
		r.setBodyBytes(body, true) // Content-MD5 is mandatory on batch delete

		var raw deleteResult
		if err := c.doXML(ctx, r, &raw, http.StatusOK); err != nil {
			return failures, err
		}
		for _, e := range raw.Errors {
			failures = append(failures, DeleteError{Key: e.Key, Code: e.Code, Message: e.Message})
		}
	}
	return failures, nil
}

/*
	Private helpers
*/

func validateBucketKey(bucket, key string) error {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return err
	}
	return utils.ValidateObjectKey(key)
}

// applyPutOptions sets the write headers shared by the three put variants and returns a non-nil opts.
func applyPutOptions(r *request, key string, opts *PutOptions) *PutOptions {
	if opts == nil {
		opts = &PutOptions{}
	}

	ct := opts.ContentType
	if ct == "" {
		ct = detectContentType(key)
	}
	r.setHeader("Content-Type", ct)

	if opts.ContentMD5 != "" {
		r.setHeader("Content-MD5", opts.ContentMD5)
	}
	for k, v := range opts.Metadata {
		r.setHeader("x-amz-meta-"+k, v)
	}
	if opts.StorageClass != "" {
		r.setHeader("x-amz-storage-class", opts.StorageClass)
	}
	if opts.ServerSideEncryption {
		r.setHeader("x-amz-server-side-encryption", "AES256")
	}
	if opts.ACL != "" {
		r.setHeader("x-amz-acl", opts.ACL)
	}
	for k, vals := range opts.Headers {
		for _, v := range vals {
			r.headers.Add(k, v)
		}
	}
	return opts
}

// fileMD5 hashes the already-open file and seeks it back to the start for sending.
func fileMD5(f *os.File) (string, error) {
	h := md5.New() //nolint:gosec // integrity header
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func (c *Client) copyBuffer() []byte {
	size := c.opts.FileBufferSize
	if size <= 0 {
		size = DefaultFileBufferSize
	}
	return make([]byte, size)
}

// objectInfoFromHeaders reads object metadata out of GET/HEAD response headers. Metadata keys come back
// lower-cased with the x-amz-meta- prefix stripped.
func objectInfoFromHeaders(key string, h http.Header) *objstore.ObjectInfo {
	info := &objstore.ObjectInfo{
		Key:          key,
		ETag:         strings.Trim(h.Get("ETag"), `"`),
		ContentType:  h.Get("Content-Type"),
		StorageClass: h.Get("x-amz-storage-class"),
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
			info.Size = size
		}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	for k, vals := range h {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "x-amz-meta-") && len(vals) > 0 {
			if info.Metadata == nil {
				info.Metadata = make(map[string]string)
			}
			info.Metadata[strings.TrimPrefix(lower, "x-amz-meta-")] = vals[0]
		}
	}
	return info
}
