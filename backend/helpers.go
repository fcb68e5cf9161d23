package backend

import "os"

// ResolveCredentials returns the access key pair from opts, falling back to the conventional environment
// variables when either field is empty. Backends call this from their registered constructors so that the
// facade works in environments that configure credentials the AWS way.
func ResolveCredentials(opts Options) (accessKeyID, secretAccessKey string) {
	accessKeyID = opts.AccessKeyID
	if accessKeyID == "" {
		accessKeyID = firstEnv("OBJSTORE_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY")
	}
	secretAccessKey = opts.SecretAccessKey
	if secretAccessKey == "" {
		secretAccessKey = firstEnv("OBJSTORE_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY", "AWS_SECRET_KEY")
	}
	return accessKeyID, secretAccessKey
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
