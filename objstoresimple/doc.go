/*
Package objstoresimple provides a basic and easy to use way to open any supported backend store from a full
URI:

	Amazon S3 (and compatibles): s3://mybucket/path/to/prefix
	Google Cloud Storage:        gs://mybucket/path/to/prefix

# Usage

Just import objstoresimple.

	package main

	import (
		"github.com/tidalfs/objstore/objstoresimple"
	)

	func doSomething() error {
		store, err := objstoresimple.NewStore("s3://mybucket/reports")
		if err != nil {
			return err
		}

		return store.PutFile(context.Background(), "2024/summary.csv", "/tmp/summary.csv")
	}

# Authentication and options

NewStore reads credentials from the conventional environment variables (OBJSTORE_ACCESS_KEY_ID and
OBJSTORE_SECRET_ACCESS_KEY, with the AWS_ names as fallbacks). NewStoreWithOptions takes explicit
backend.Options instead: credentials, endpoint, region, and transport settings. For anything beyond the
objstore.Store surface, construct the backend's client directly; see the backend/s3 docs.
*/
package objstoresimple
