package cloudfront

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/ssh"

	"github.com/tidalfs/objstore"
)

type optionsTestSuite struct {
	suite.Suite
	key *rsa.PrivateKey
}

func (ts *optionsTestSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	ts.Require().NoError(err)
	ts.key = key
}

func (ts *optionsTestSuite) pkcs1PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(ts.key)})
}

func (ts *optionsTestSuite) TestDefaultEndpoint() {
	client, err := NewClient(Options{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	ts.Require().NoError(err)
	ts.Equal("cloudfront.amazonaws.com", client.Endpoint().Host())
	ts.True(client.Endpoint().Secure())
	ts.Nil(client.signKey, "No signing key configured means none loaded")
}

func (ts *optionsTestSuite) TestMissingCredentials() {
	_, err := NewClient(Options{})
	ts.ErrorIs(err, objstore.ErrMissingCredentials)

	_, err = NewClient(Options{AccessKeyID: "AKID"})
	ts.ErrorIs(err, objstore.ErrMissingCredentials)
}

func (ts *optionsTestSuite) TestBadEndpoint() {
	_, err := NewClient(Options{AccessKeyID: "AKID", SecretAccessKey: "secret", Endpoint: "ftp://cdn.example.com"})
	ts.ErrorIs(err, objstore.ErrInvalidEndpoint)
}

func (ts *optionsTestSuite) TestKeyFormats() {
	pkcs8, err := x509.MarshalPKCS8PrivateKey(ts.key)
	ts.Require().NoError(err)
	sshBlock, err := ssh.MarshalPrivateKey(ts.key, "")
	ts.Require().NoError(err)

	cases := map[string][]byte{
		"PKCS#1":  ts.pkcs1PEM(),
		"PKCS#8":  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}),
		"OpenSSH": pem.EncodeToMemory(sshBlock),
	}
	for name, material := range cases {
		client, err := NewClient(Options{
			AccessKeyID: "AKID", SecretAccessKey: "secret",
			KeyPairID: "APKAEXAMPLE", PrivateKey: material,
		})
		ts.Require().NoError(err, name)
		ts.Require().NotNil(client.signKey, name)
		ts.True(client.signKey.Equal(ts.key), name)
	}
}

func (ts *optionsTestSuite) TestPrivateKeyPath() {
	keyPath := filepath.Join(ts.T().TempDir(), "signing.pem")
	ts.Require().NoError(os.WriteFile(keyPath, ts.pkcs1PEM(), 0o600))

	client, err := NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret",
		KeyPairID: "APKAEXAMPLE", PrivateKeyPath: keyPath,
	})
	ts.Require().NoError(err)
	ts.True(client.signKey.Equal(ts.key))
}

func (ts *optionsTestSuite) TestPrivateKeyPathMissing() {
	_, err := NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret",
		KeyPairID: "APKAEXAMPLE", PrivateKeyPath: filepath.Join(ts.T().TempDir(), "absent.pem"),
	})
	ts.Error(err)
}

func (ts *optionsTestSuite) TestKeyConfigurationErrors() {
	_, err := NewClient(Options{AccessKeyID: "AKID", SecretAccessKey: "secret", KeyPairID: "APKAEXAMPLE"})
	ts.EqualError(err, "KeyPairID is set but no private key is configured")

	_, err = NewClient(Options{AccessKeyID: "AKID", SecretAccessKey: "secret", PrivateKey: ts.pkcs1PEM()})
	ts.EqualError(err, "a private key is configured but KeyPairID is empty")

	_, err = NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret", KeyPairID: "APKAEXAMPLE",
		PrivateKey: ts.pkcs1PEM(), PrivateKeyPath: "~/signing.pem",
	})
	ts.EqualError(err, "PrivateKey and PrivateKeyPath are mutually exclusive")
}

func (ts *optionsTestSuite) TestNonRSAKeyRejected() {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	ts.Require().NoError(err)
	der, err := x509.MarshalPKCS8PrivateKey(edKey)
	ts.Require().NoError(err)

	_, err = NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret", KeyPairID: "APKAEXAMPLE",
		PrivateKey: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
	})
	ts.ErrorContains(err, "policy signing requires an RSA key")
}

func (ts *optionsTestSuite) TestGarbageKeyRejected() {
	_, err := NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret",
		KeyPairID: "APKAEXAMPLE", PrivateKey: []byte("not a key"),
	})
	ts.ErrorContains(err, "parse private key")
}

func (ts *optionsTestSuite) TestTimeOffsetShiftsSigningClock() {
	client, err := NewClient(Options{
		AccessKeyID: "AKID", SecretAccessKey: "secret",
		KeyPairID: "APKAEXAMPLE", PrivateKey: ts.pkcs1PEM(),
		TimeOffset: -2 * time.Hour,
	})
	ts.Require().NoError(err)

	// Past on the wall clock, future on the adjusted clock.
	_, err = client.SignedURL("https://cdn.example.com/x", time.Now().Add(-time.Hour))
	ts.NoError(err)
}

func TestOptions(t *testing.T) {
	suite.Run(t, new(optionsTestSuite))
}
