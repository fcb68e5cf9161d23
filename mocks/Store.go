// Package mocks provides testify mocks for the objstore interfaces, for consumers testing code that takes
// an objstore.Store without standing up a fake service.
package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tidalfs/objstore"
)

// Store is a mock implementation of objstore.Store.
type Store struct {
	mock.Mock
}

var _ objstore.Store = (*Store)(nil)

// Put mocks objstore.Store.Put.
func (m *Store) Put(ctx context.Context, name string, body io.Reader, size int64) error {
	args := m.Called(ctx, name, body, size)
	return args.Error(0)
}

// PutFile mocks objstore.Store.PutFile.
func (m *Store) PutFile(ctx context.Context, name, localPath string) error {
	args := m.Called(ctx, name, localPath)
	return args.Error(0)
}

// Get mocks objstore.Store.Get.
func (m *Store) Get(ctx context.Context, name string, w io.Writer) (*objstore.ObjectInfo, error) {
	args := m.Called(ctx, name, w)
	info, _ := args.Get(0).(*objstore.ObjectInfo)
	return info, args.Error(1)
}

// GetFile mocks objstore.Store.GetFile.
func (m *Store) GetFile(ctx context.Context, name, localPath string) (*objstore.ObjectInfo, error) {
	args := m.Called(ctx, name, localPath)
	info, _ := args.Get(0).(*objstore.ObjectInfo)
	return info, args.Error(1)
}

// Delete mocks objstore.Store.Delete.
func (m *Store) Delete(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// Stat mocks objstore.Store.Stat.
func (m *Store) Stat(ctx context.Context, name string) (*objstore.ObjectInfo, error) {
	args := m.Called(ctx, name)
	info, _ := args.Get(0).(*objstore.ObjectInfo)
	return info, args.Error(1)
}

// Exists mocks objstore.Store.Exists.
func (m *Store) Exists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

// List mocks objstore.Store.List.
func (m *Store) List(ctx context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	infos, _ := args.Get(0).([]objstore.ObjectInfo)
	return infos, args.Error(1)
}

// SignedURL mocks objstore.Store.SignedURL.
func (m *Store) SignedURL(name string, lifetime time.Duration) (string, error) {
	args := m.Called(name, lifetime)
	return args.String(0), args.Error(1)
}

// Probe mocks objstore.Store.Probe.
func (m *Store) Probe(ctx context.Context) (*objstore.ProbeResult, error) {
	args := m.Called(ctx)
	result, _ := args.Get(0).(*objstore.ProbeResult)
	return result, args.Error(1)
}

// Scheme mocks objstore.Store.Scheme.
func (m *Store) Scheme() string {
	return m.Called().String(0)
}

func (m *Store) String() string {
	return m.Called().String(0)
}
