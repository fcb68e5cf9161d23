// Package all imports all objstore backend implementations.
package all

import (
	_ "github.com/tidalfs/objstore/backend/gs" // register gs backend
	_ "github.com/tidalfs/objstore/backend/s3" // register s3 backend
)
