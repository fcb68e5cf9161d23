package s3

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/tidalfs/objstore/utils"
)

// postPolicyTimeFormat is the ISO8601 form the policy document's expiration uses.
const postPolicyTimeFormat = "2006-01-02T15:04:05.000Z"

// PostPolicy accumulates the conditions of a browser-based POST upload: which bucket and key may be
// written, under what ACL and size limits, and what happens on success. Build it with the setters, then
// hand it to Client.BuildPostForm for signing.
type PostPolicy struct {
	bucket     string
	expiration time.Time
	conditions []postCondition

	lengthRangeSet bool
	lengthMin      int64
	lengthMax      int64

	formData map[string]string
}

type postCondition struct {
	matchType string // "eq" or "starts-with"
	condition string // "$key", "$acl", ...
	value     string
}

// NewPostPolicy returns an empty policy.
func NewPostPolicy() *PostPolicy {
	return &PostPolicy{formData: make(map[string]string)}
}

// SetExpiration sets when the signed form stops being accepted.
func (p *PostPolicy) SetExpiration(t time.Time) error {
	if t.IsZero() || t.Before(time.Now()) {
		return errors.New("expiration must be in the future")
	}
	p.expiration = t
	return nil
}

// SetBucket restricts the upload to bucket. The bucket travels in the form action URL; the policy
// condition pins it.
func (p *PostPolicy) SetBucket(bucket string) error {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return err
	}
	p.bucket = bucket
	p.addCondition("eq", "$bucket", bucket)
	return nil
}

// SetKey restricts the upload to exactly key.
func (p *PostPolicy) SetKey(key string) error {
	if err := utils.ValidateObjectKey(key); err != nil {
		return err
	}
	p.addCondition("eq", "$key", key)
	p.formData["key"] = key
	return nil
}

// SetKeyStartsWith restricts the upload to keys beginning with prefix. The form's key field gets the
// ${filename} placeholder, so the uploaded file's name completes the key.
func (p *PostPolicy) SetKeyStartsWith(prefix string) error {
	if err := utils.ValidatePrefix(prefix); err != nil {
		return err
	}
	p.addCondition("starts-with", "$key", prefix)
	p.formData["key"] = prefix + "${filename}"
	return nil
}

// SetACL applies a canned ACL to the uploaded object.
func (p *PostPolicy) SetACL(acl string) error {
	if acl == "" {
		return errors.New("acl must not be empty")
	}
	p.addCondition("eq", "$acl", acl)
	p.formData["acl"] = acl
	return nil
}

// SetContentType pins the uploaded Content-Type.
func (p *PostPolicy) SetContentType(contentType string) error {
	return p.SetHeader("Content-Type", contentType)
}

// SetContentLengthRange bounds the upload size in bytes, inclusive.
func (p *PostPolicy) SetContentLengthRange(minLength, maxLength int64) error {
	if minLength < 0 || maxLength < minLength {
		return errors.New("content length range must satisfy 0 <= min <= max")
	}
	p.lengthRangeSet = true
	p.lengthMin = minLength
	p.lengthMax = maxLength
	return nil
}

// SetSuccessActionRedirect sends the browser to url after a successful upload.
func (p *PostPolicy) SetSuccessActionRedirect(url string) error {
	if url == "" {
		return errors.New("redirect url must not be empty")
	}
	p.addCondition("eq", "$success_action_redirect", url)
	p.formData["success_action_redirect"] = url
	return nil
}

// SetSuccessActionStatus sets the HTTP status returned after a successful upload (200, 201, or 204).
func (p *PostPolicy) SetSuccessActionStatus(status int) error {
	if status != 200 && status != 201 && status != 204 {
		return errors.New("success action status must be 200, 201, or 204")
	}
	value := strconv.Itoa(status)
	p.addCondition("eq", "$success_action_status", value)
	p.formData["success_action_status"] = value
	return nil
}

// SetUserMetadata stores name/value with the uploaded object as x-amz-meta-* metadata.
func (p *PostPolicy) SetUserMetadata(name, value string) error {
	if name == "" {
		return errors.New("metadata name must not be empty")
	}
	return p.SetHeader("x-amz-meta-"+name, value)
}

// SetHeader pins an arbitrary form field (header) to an exact value.
func (p *PostPolicy) SetHeader(name, value string) error {
	if name == "" {
		return errors.New("header name must not be empty")
	}
	p.addCondition("eq", "$"+name, value)
	p.formData[name] = value
	return nil
}

// SetHeaderStartsWith pins an arbitrary form field (header) to a value prefix. The form carries the
// prefix as a default; the uploader may extend it.
func (p *PostPolicy) SetHeaderStartsWith(name, prefix string) error {
	if name == "" {
		return errors.New("header name must not be empty")
	}
	p.addCondition("starts-with", "$"+name, prefix)
	p.formData[name] = prefix
	return nil
}

/*
	Private helpers
*/

func (p *PostPolicy) addCondition(matchType, condition, value string) {
	p.conditions = append(p.conditions, postCondition{matchType: matchType, condition: condition, value: value})
}

// marshal renders the policy document JSON in insertion order.
func (p *PostPolicy) marshal() ([]byte, error) {
	conditions := make([]any, 0, len(p.conditions)+1)
	for _, c := range p.conditions {
		conditions = append(conditions, []any{c.matchType, c.condition, c.value})
	}
	if p.lengthRangeSet {
		conditions = append(conditions, []any{"content-length-range", p.lengthMin, p.lengthMax})
	}

	doc := struct {
		Expiration string `json:"expiration"`
		Conditions []any  `json:"conditions"`
	}{
		Expiration: p.expiration.UTC().Format(postPolicyTimeFormat),
		Conditions: conditions,
	}
	return json.Marshal(doc)
}

// BuildPostForm signs policy and returns the form action URL plus the flat field map a browser form must
// carry (policy, signature, access key id, and every conditioned field). The signing secret never appears
// in the output.
func (c *Client) BuildPostForm(policy *PostPolicy) (string, map[string]string, error) {
	if policy == nil {
		return "", nil, errors.New("non-nil PostPolicy is required")
	}
	if policy.bucket == "" {
		return "", nil, errors.New("post policy bucket is not set")
	}
	if policy.formData["key"] == "" {
		return "", nil, errors.New("post policy key is not set")
	}
	if policy.expiration.IsZero() {
		return "", nil, errors.New("post policy expiration is not set")
	}

	doc, err := policy.marshal()
	if err != nil {
		return "", nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(doc)

	fields := make(map[string]string, len(policy.formData)+3)
	for k, v := range policy.formData {
		fields[k] = v
	}
	fields["AWSAccessKeyId"] = c.opts.AccessKeyID
	fields["policy"] = encoded
	fields["signature"] = signHMAC(encoded, c.opts.SecretAccessKey)

	host := c.endpoint.HostPortStr()
	actionPath := "/" + policy.bucket + "/"
	if c.opts.UseVirtualHost {
		host = policy.bucket + "." + host
		actionPath = "/"
	}
	return c.endpoint.Scheme() + "://" + host + actionPath, fields, nil
}
