package s3

import (
	"context"
	"encoding/xml"
	"net/http"

	"github.com/tidalfs/objstore/utils"
)

// BucketLogging describes a bucket's access-logging configuration. Enabled is false when logging is off,
// in which case the target fields are empty.
type BucketLogging struct {
	Enabled      bool
	TargetBucket string
	TargetPrefix string
}

/*
	Wire shapes
*/

type loggingEnabled struct {
	TargetBucket string `xml:"TargetBucket"`
	TargetPrefix string `xml:"TargetPrefix"`
}

type bucketLoggingStatus struct {
	XMLName xml.Name        `xml:"BucketLoggingStatus"`
	Enabled *loggingEnabled `xml:"LoggingEnabled,omitempty"`
}

/*
	Operations
*/

// GetBucketLogging returns bucket's access-logging configuration.
func (c *Client) GetBucketLogging(ctx context.Context, bucket string) (*BucketLogging, error) {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	var raw bucketLoggingStatus
	r := newRequest(http.MethodGet, bucket, "").setSubresource("logging")
	if err := c.doXML(ctx, r, &raw, http.StatusOK); err != nil {
		return nil, err
	}

	if raw.Enabled == nil {
		return &BucketLogging{}, nil
	}
	return &BucketLogging{
		Enabled:      true,
		TargetBucket: raw.Enabled.TargetBucket,
		TargetPrefix: raw.Enabled.TargetPrefix,
	}, nil
}

// SetBucketLogging configures access logging for bucket. An empty targetBucket disables logging. Enabling
// first makes sure the log-delivery group holds WRITE and READ_ACP on the target bucket, adding only the
// grants that are missing, so repeated enables never stack duplicates.
func (c *Client) SetBucketLogging(ctx context.Context, bucket, targetBucket, targetPrefix string) error {
	if err := utils.ValidateBucketName(bucket); err != nil {
		return err
	}

	var status bucketLoggingStatus
	if targetBucket != "" {
		if err := utils.ValidateBucketName(targetBucket); err != nil {
			return err
		}
		if err := c.ensureLogDeliveryGrants(ctx, targetBucket); err != nil {
			return err
		}
		status.Enabled = &loggingEnabled{TargetBucket: targetBucket, TargetPrefix: targetPrefix}
	}

	body, err := xml.Marshal(status)
	if err != nil {
		return err
	}

	r := newRequest(http.MethodPut, bucket, "").setSubresource("logging")
	r.setHeader("Content-Type", "application/xml")
	r.setBodyBytes(body, false)
	_, _, err = c.doDiscard(ctx, r, http.StatusOK)
	return err
}

/*
	Private helpers
*/

// ensureLogDeliveryGrants gives the log-delivery group write access to the target bucket, leaving the
// policy untouched when the grants are already present.
func (c *Client) ensureLogDeliveryGrants(ctx context.Context, targetBucket string) error {
	policy, err := c.GetACL(ctx, targetBucket, "")
	if err != nil {
		return err
	}

	needed := []Grant{
		{Grantee: Grantee{URI: GroupLogDelivery}, Permission: PermissionWrite},
		{Grantee: Grantee{URI: GroupLogDelivery}, Permission: PermissionReadACP},
	}
	changed := false
	for _, g := range needed {
		if !policy.HasGrant(g) {
			policy.Grants = append(policy.Grants, g)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.PutACL(ctx, targetBucket, "", policy)
}
