package cloudfront

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // the CDN policy scheme is defined over RSA-SHA1
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// policyEncoding is the URL-safe substitution applied to base64 policy material before it rides in a
// query string or cookie: "+", "=", and "/" all collide with URL syntax.
var policyEncoding = strings.NewReplacer("+", "-", "=", "_", "/", "~")

/*
	Policy documents
*/

type cannedStatement struct {
	Resource  string          `json:"Resource"`
	Condition cannedCondition `json:"Condition"`
}

type cannedCondition struct {
	DateLessThan epochCondition `json:"DateLessThan"`
}

type epochCondition struct {
	EpochTime int64 `json:"AWS:EpochTime"`
}

// CannedPolicy renders the fixed-shape policy document granting access to exactly resourceURL until
// expires. Use it with SignedCookies when the canned semantics are wanted in cookie form.
func CannedPolicy(resourceURL string, expires time.Time) ([]byte, error) {
	if resourceURL == "" {
		return nil, errors.New("resource url is required")
	}
	if expires.IsZero() {
		return nil, errors.New("expiry is required")
	}

	return json.Marshal(struct {
		Statement []cannedStatement `json:"Statement"`
	}{
		Statement: []cannedStatement{{
			Resource:  resourceURL,
			Condition: cannedCondition{DateLessThan: epochCondition{EpochTime: expires.Unix()}},
		}},
	})
}

/*
	Signing
*/

// SignedURL grants access to exactly resourceURL until expires using the canned policy: the URL gains
// Expires, Signature, and Key-Pair-Id parameters and the policy document itself is implied, so it never
// travels. Requires a configured signing key pair.
func (c *Client) SignedURL(resourceURL string, expires time.Time) (string, error) {
	if err := c.requireSigningKey(); err != nil {
		return "", err
	}
	if !expires.After(c.now()) {
		return "", errors.New("expiry must be in the future")
	}

	policy, err := CannedPolicy(resourceURL, expires)
	if err != nil {
		return "", err
	}
	signature, err := c.signPolicy(policy)
	if err != nil {
		return "", err
	}

	return resourceURL + querySeparator(resourceURL) +
		"Expires=" + strconv.FormatInt(expires.Unix(), 10) +
		"&Signature=" + signature +
		"&Key-Pair-Id=" + c.opts.KeyPairID, nil
}

// SignedURLCustom signs a caller-supplied policy document and attaches it to baseURL: the URL gains
// Policy, Signature, and Key-Pair-Id parameters. The policy controls which resources the URL actually
// grants; baseURL just has to match one of them.
func (c *Client) SignedURLCustom(baseURL string, policy []byte) (string, error) {
	if err := c.requireSigningKey(); err != nil {
		return "", err
	}
	if len(policy) == 0 {
		return "", errors.New("policy document is required")
	}

	signature, err := c.signPolicy(policy)
	if err != nil {
		return "", err
	}

	return baseURL + querySeparator(baseURL) +
		"Policy=" + policyEncoding.Replace(base64.StdEncoding.EncodeToString(policy)) +
		"&Signature=" + signature +
		"&Key-Pair-Id=" + c.opts.KeyPairID, nil
}

// SignedCookies signs a policy document into the cookie triple a browser sends instead of URL parameters:
// CloudFront-Policy, CloudFront-Signature, and CloudFront-Key-Pair-Id.
func (c *Client) SignedCookies(policy []byte) (map[string]string, error) {
	if err := c.requireSigningKey(); err != nil {
		return nil, err
	}
	if len(policy) == 0 {
		return nil, errors.New("policy document is required")
	}

	signature, err := c.signPolicy(policy)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"CloudFront-Policy":      policyEncoding.Replace(base64.StdEncoding.EncodeToString(policy)),
		"CloudFront-Signature":   signature,
		"CloudFront-Key-Pair-Id": c.opts.KeyPairID,
	}, nil
}

/*
	Private helpers
*/

func (c *Client) requireSigningKey() error {
	if c.signKey == nil {
		return errors.New("policy signing requires KeyPairID and a private key")
	}
	return nil
}

// signPolicy produces the URL-safe RSA-SHA1 signature of a policy document.
func (c *Client) signPolicy(policy []byte) (string, error) {
	digest := sha1.Sum(policy)
	signature, err := rsa.SignPKCS1v15(rand.Reader, c.signKey, crypto.SHA1, digest[:])
	if err != nil {
		return "", err
	}
	return policyEncoding.Replace(base64.StdEncoding.EncodeToString(signature)), nil
}

func querySeparator(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}
