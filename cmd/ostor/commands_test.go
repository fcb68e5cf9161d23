package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/tidalfs/objstore"
	"github.com/tidalfs/objstore/mocks"
)

type commandsTestSuite struct {
	suite.Suite
	store  *mocks.Store
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (ts *commandsTestSuite) SetupTest() {
	ts.store = new(mocks.Store)
	ts.stdout.Reset()
	ts.stderr.Reset()
	color.NoColor = true
}

// opener returns a storeOpener that resolves names the way the real one does but hands back the mock.
func (ts *commandsTestSuite) opener() storeOpener {
	return func(uri string) (objstore.Store, string, error) {
		_, name, err := splitStoreURI(uri)
		return ts.store, name, err
	}
}

func (ts *commandsTestSuite) TestLS() {
	ts.store.On("List", mock.Anything, "reports/").Return([]objstore.ObjectInfo{
		{Key: "reports/2024/a.csv", Size: 120},
		{Key: "reports/2024/b.csv", Size: 64000},
	}, nil)

	err := cmdLS(context.Background(), ts.opener(), []string{"s3://bucket/reports/"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Equal("reports/2024/a.csv\nreports/2024/b.csv\n", ts.stdout.String())
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestLSLong() {
	modified := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	ts.store.On("List", mock.Anything, "").Return([]objstore.ObjectInfo{
		{Key: "a.csv", Size: 120, LastModified: modified},
	}, nil)

	err := cmdLS(context.Background(), ts.opener(), []string{"-l", "s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Equal("         120  2024-03-05 10:30:00  a.csv\n", ts.stdout.String())
}

func (ts *commandsTestSuite) TestPut() {
	ts.store.On("PutFile", mock.Anything, "dir/file.txt", "local.csv").Return(nil)

	err := cmdPut(context.Background(), ts.opener(),
		[]string{"local.csv", "s3://bucket/dir/file.txt"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Contains(ts.stdout.String(), "uploaded local.csv to s3://bucket/dir/file.txt")
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestPutRequiresKey() {
	err := cmdPut(context.Background(), ts.opener(), []string{"local.csv", "s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.ErrorIs(err, errUsage)
	ts.Contains(ts.stderr.String(), "destination must name an object key")
}

func (ts *commandsTestSuite) TestGetDefaultsLocalPath() {
	ts.store.On("GetFile", mock.Anything, "a/b/report.csv", "report.csv").
		Return(&objstore.ObjectInfo{Size: 2048}, nil)

	err := cmdGet(context.Background(), ts.opener(), []string{"s3://bucket/a/b/report.csv"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Contains(ts.stdout.String(), "(2048 bytes)")
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestGetExplicitLocalPath() {
	ts.store.On("GetFile", mock.Anything, "key.bin", "out.bin").Return(&objstore.ObjectInfo{Size: 1}, nil)

	err := cmdGet(context.Background(), ts.opener(), []string{"s3://bucket/key.bin", "out.bin"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestRM() {
	ts.store.On("Delete", mock.Anything, "old/file.txt").Return(nil)

	err := cmdRM(context.Background(), ts.opener(), []string{"s3://bucket/old/file.txt"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Contains(ts.stdout.String(), "deleted s3://bucket/old/file.txt")
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestStat() {
	ts.store.On("Stat", mock.Anything, "key.txt").Return(&objstore.ObjectInfo{
		Key:          "key.txt",
		Size:         5,
		ETag:         "abc123",
		LastModified: time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		ContentType:  "text/plain",
		StorageClass: "STANDARD",
		Metadata:     map[string]string{"owner": "reports", "batch": "77"},
	}, nil)

	err := cmdStat(context.Background(), ts.opener(), []string{"s3://bucket/key.txt"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)

	out := ts.stdout.String()
	ts.Contains(out, "size:          5")
	ts.Contains(out, "etag:          abc123")
	ts.Contains(out, "content-type:  text/plain")
	ts.Contains(out, "storage-class: STANDARD")
	ts.Contains(out, "meta:          batch=77\n  meta:          owner=reports", "Metadata prints sorted")
}

func (ts *commandsTestSuite) TestStatNotFound() {
	ts.store.On("Stat", mock.Anything, "absent.txt").Return(nil, nil)

	err := cmdStat(context.Background(), ts.opener(), []string{"s3://bucket/absent.txt"}, &ts.stdout, &ts.stderr)
	ts.EqualError(err, "not found: s3://bucket/absent.txt")
}

func (ts *commandsTestSuite) TestPresign() {
	ts.store.On("SignedURL", "key.txt", 90*time.Second).Return("https://signed.example/x", nil)

	err := cmdPresign(ts.opener(), []string{"-lifetime", "90s", "s3://bucket/key.txt"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Equal("https://signed.example/x\n", ts.stdout.String())
	ts.store.AssertExpectations(ts.T())
}

func (ts *commandsTestSuite) TestCheck() {
	ts.store.On("Probe", mock.Anything).Return(&objstore.ProbeResult{
		Endpoint:      "s3.amazonaws.com",
		Reachable:     true,
		Authenticated: true,
		PendingCount:  42,
		Elapsed:       120 * time.Millisecond,
	}, nil)

	err := cmdCheck(context.Background(), ts.opener(), []string{"s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)

	out := ts.stdout.String()
	ts.Contains(out, "reachable:   yes")
	ts.Contains(out, "credentials: yes")
	ts.Contains(out, "objects:     42\n")
	ts.Contains(out, "ok\n")
}

func (ts *commandsTestSuite) TestCheckCappedCount() {
	ts.store.On("Probe", mock.Anything).Return(&objstore.ProbeResult{
		Endpoint: "s3.amazonaws.com", Reachable: true, Authenticated: true,
		PendingCount: 10000, CountCapped: true,
	}, nil)

	err := cmdCheck(context.Background(), ts.opener(), []string{"s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.Require().NoError(err)
	ts.Contains(ts.stdout.String(), "objects:     10000+")
}

func (ts *commandsTestSuite) TestCheckFailed() {
	ts.store.On("Probe", mock.Anything).Return(&objstore.ProbeResult{
		Endpoint:  "s3.amazonaws.com",
		Reachable: true,
		Detail:    "authentication failed (status 403)",
	}, nil)

	err := cmdCheck(context.Background(), ts.opener(), []string{"s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.EqualError(err, "check failed: authentication failed (status 403)")
	ts.Contains(ts.stdout.String(), "credentials: no")
}

func (ts *commandsTestSuite) TestArgumentValidation() {
	ctx := context.Background()
	open := ts.opener()

	ts.ErrorIs(cmdLS(ctx, open, nil, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdPut(ctx, open, []string{"only-one"}, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdGet(ctx, open, nil, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdRM(ctx, open, nil, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdStat(ctx, open, nil, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdPresign(open, nil, &ts.stdout, &ts.stderr), errUsage)
	ts.ErrorIs(cmdCheck(ctx, open, nil, &ts.stdout, &ts.stderr), errUsage)
}

func (ts *commandsTestSuite) TestUnknownFlag() {
	err := cmdLS(context.Background(), ts.opener(), []string{"-zzz", "s3://bucket"}, &ts.stdout, &ts.stderr)
	ts.ErrorIs(err, errUsage)
	ts.Contains(ts.stderr.String(), "-zzz")
}

func TestCommands(t *testing.T) {
	suite.Run(t, new(commandsTestSuite))
}
