package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
)

func cmdLS(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	flags.SetOutput(stderr)
	long := flags.Bool("l", false, "long listing: size, modification time, key")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: ostor ls [-l] <scheme://bucket[/prefix]>")
		return errUsage
	}

	store, prefix, err := open(flags.Arg(0))
	if err != nil {
		return err
	}
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, info := range infos {
		if *long {
			fmt.Fprintf(stdout, "%12d  %s  %s\n", info.Size,
				info.LastModified.Format("2006-01-02 15:04:05"), color.CyanString(info.Key))
		} else {
			fmt.Fprintln(stdout, info.Key)
		}
	}
	return nil
}

func cmdPut(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("put", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 2 {
		fmt.Fprintln(stderr, "usage: ostor put <localfile> <scheme://bucket/key>")
		return errUsage
	}
	localPath, uri := flags.Arg(0), flags.Arg(1)

	store, name, err := open(uri)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(stderr, "ostor put: destination must name an object key")
		return errUsage
	}

	if err := store.PutFile(ctx, name, localPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "uploaded %s to %s\n", localPath, color.CyanString(uri))
	return nil
}

func cmdGet(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 && flags.NArg() != 2 {
		fmt.Fprintln(stderr, "usage: ostor get <scheme://bucket/key> [localfile]")
		return errUsage
	}
	uri := flags.Arg(0)

	store, name, err := open(uri)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(stderr, "ostor get: source must name an object key")
		return errUsage
	}
	localPath := flags.Arg(1)
	if localPath == "" {
		localPath = path.Base(name)
	}

	info, err := store.GetFile(ctx, name, localPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "downloaded %s to %s (%d bytes)\n", color.CyanString(uri), localPath, info.Size)
	return nil
}

func cmdRM(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: ostor rm <scheme://bucket/key>")
		return errUsage
	}
	uri := flags.Arg(0)

	store, name, err := open(uri)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(stderr, "ostor rm: target must name an object key")
		return errUsage
	}

	if err := store.Delete(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted %s\n", color.CyanString(uri))
	return nil
}

func cmdStat(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("stat", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: ostor stat <scheme://bucket/key>")
		return errUsage
	}
	uri := flags.Arg(0)

	store, name, err := open(uri)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(stderr, "ostor stat: target must name an object key")
		return errUsage
	}

	info, err := store.Stat(ctx, name)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("not found: %s", uri)
	}

	fmt.Fprintln(stdout, color.CyanString(uri))
	fmt.Fprintf(stdout, "  size:          %d\n", info.Size)
	fmt.Fprintf(stdout, "  modified:      %s\n", info.LastModified.Format(time.RFC3339))
	if info.ETag != "" {
		fmt.Fprintf(stdout, "  etag:          %s\n", info.ETag)
	}
	if info.ContentType != "" {
		fmt.Fprintf(stdout, "  content-type:  %s\n", info.ContentType)
	}
	if info.StorageClass != "" {
		fmt.Fprintf(stdout, "  storage-class: %s\n", info.StorageClass)
	}
	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(stdout, "  meta:          %s=%s\n", k, info.Metadata[k])
	}
	return nil
}

func cmdPresign(open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("presign", flag.ContinueOnError)
	flags.SetOutput(stderr)
	lifetime := flags.Duration("lifetime", 15*time.Minute, "how long the URL stays valid")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: ostor presign [-lifetime 15m] <scheme://bucket/key>")
		return errUsage
	}
	uri := flags.Arg(0)

	store, name, err := open(uri)
	if err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(stderr, "ostor presign: target must name an object key")
		return errUsage
	}

	signed, err := store.SignedURL(name, *lifetime)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, signed)
	return nil
}

func cmdCheck(ctx context.Context, open storeOpener, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("check", flag.ContinueOnError)
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: ostor check <scheme://bucket[/prefix]>")
		return errUsage
	}

	store, _, err := open(flags.Arg(0))
	if err != nil {
		return err
	}
	result, err := store.Probe(ctx)
	if err != nil {
		return err
	}

	count := strconv.FormatInt(result.PendingCount, 10)
	if result.CountCapped {
		count += "+"
	}
	fmt.Fprintf(stdout, "endpoint:    %s\n", result.Endpoint)
	fmt.Fprintf(stdout, "reachable:   %s\n", yesNo(result.Reachable))
	fmt.Fprintf(stdout, "credentials: %s\n", yesNo(result.Authenticated))
	if result.WriteChecked {
		fmt.Fprintf(stdout, "writable:    %s\n", yesNo(result.Writable))
	}
	fmt.Fprintf(stdout, "objects:     %s\n", count)
	fmt.Fprintf(stdout, "elapsed:     %s\n", result.Elapsed)

	if !result.OK() {
		return fmt.Errorf("check failed: %s", result.Detail)
	}
	fmt.Fprintln(stdout, color.GreenString("ok"))
	return nil
}

func yesNo(ok bool) string {
	if ok {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}
