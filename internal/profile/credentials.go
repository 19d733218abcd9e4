package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlesng35/ovpnhub/internal/models"
)

// ErrCredentialsUnavailable means the CA certificate could not be loaded, so no usable
// profile can be produced.
var ErrCredentialsUnavailable = errors.New("profile: credentials unavailable")

// Credentials are the PEM blocks embedded into a profile. Values are emitted verbatim.
type Credentials struct {
	CA       string
	Cert     string
	Key      string
	TLSCrypt string
}

// CredentialSource supplies the credential material for a user's profile.
type CredentialSource interface {
	Credentials(ctx context.Context, user models.User) (Credentials, error)
}

// StaticCredentials serves the same material to every user.
type StaticCredentials Credentials

// Credentials implements CredentialSource.
func (s StaticCredentials) Credentials(context.Context, models.User) (Credentials, error) {
	return Credentials(s), nil
}

// FileCredentials reads PEM files from a directory laid out as:
//
//	ca.crt              server CA (required)
//	ta.key              tls-crypt key (optional)
//	clients/<user>.crt  per-user client certificate (optional)
//	clients/<user>.key  per-user client key (optional)
type FileCredentials struct {
	dir string
}

// NewFileCredentials returns a file-backed source rooted at dir.
func NewFileCredentials(dir string) (*FileCredentials, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("profile: credentials directory is required")
	}
	return &FileCredentials{dir: dir}, nil
}

// Credentials implements CredentialSource.
func (f *FileCredentials) Credentials(_ context.Context, user models.User) (Credentials, error) {
	ca, err := f.read("ca.crt")
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	if ca == "" {
		return Credentials{}, fmt.Errorf("%w: ca.crt not found in %s", ErrCredentialsUnavailable, f.dir)
	}

	creds := Credentials{CA: ca}
	if creds.TLSCrypt, err = f.read("ta.key"); err != nil {
		return Credentials{}, err
	}

	base := strings.TrimSuffix(FileName(user.Username), ".ovpn")
	if creds.Cert, err = f.read(filepath.Join("clients", base+".crt")); err != nil {
		return Credentials{}, err
	}
	if creds.Key, err = f.read(filepath.Join("clients", base+".key")); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// read returns the file contents, or "" when the file does not exist.
func (f *FileCredentials) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("profile: read %s: %w", name, err)
	}
	return string(data), nil
}
