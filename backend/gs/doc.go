/*
Package gs registers the "gs" scheme: Google Cloud Storage reached over its S3-compatible XML
(interoperability) endpoint.

Cloud Storage speaks the same XML protocol this module already implements for "s3", so the backend is a
thin preset over backend/s3 rather than a second protocol stack: the default endpoint is
storage.googleapis.com and the credentials are an interoperability HMAC key pair (created under Cloud
Storage settings), not a service account key.

# Usage

	store, err := gs.NewStore("bucket", "reports", s3.Options{
		AccessKeyID:     "GOOG1EXAMPLE",
		SecretAccessKey: "secret",
	})

Everything the s3 package documents applies unchanged, the error taxonomy included.
*/
package gs
