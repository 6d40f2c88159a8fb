package sshutil

import (
	stderrors "errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

// KeyInfo describes a private key that parsed successfully.
type KeyInfo struct {
	Path        string
	Type        string // e.g. ssh-ed25519
	Fingerprint string // SHA256:...
}

// RequireKeyFile checks that path names a readable regular file. It's the
// cheap check done before any ssh process is spawned.
func RequireKeyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.ErrUsage,
				fmt.Sprintf("SSH private key %s not found", path),
				"Point identity_file in .fleetrun.yaml at an existing key, or generate one with: ssh-keygen -t ed25519")
		}
		return errors.WrapWithCode(err, errors.ErrUsage,
			fmt.Sprintf("Can't read SSH private key %s", path),
			"Check the file permissions.")
	}
	if info.IsDir() {
		return errors.New(errors.ErrUsage,
			fmt.Sprintf("SSH private key %s is a directory", path),
			"identity_file must point at the key file itself.")
	}
	return nil
}

// CheckPrivateKey parses the key at path and reports its type. Keys that
// need a passphrase are rejected since ssh runs with BatchMode=yes and
// can't prompt for one.
func CheckPrivateKey(path string) (*KeyInfo, error) {
	if err := RequireKeyFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read SSH private key %s", path),
			"Check the file permissions.")
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("SSH private key %s is passphrase protected", path),
				"Load it into ssh-agent first: ssh-add "+path)
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't parse SSH private key %s", path),
			"Make sure this is a private key, not the .pub half.")
	}

	pub := signer.PublicKey()
	return &KeyInfo{
		Path:        path,
		Type:        pub.Type(),
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}

// KeyPermissionsTooOpen reports whether group or other can read the key.
// OpenSSH refuses such keys outright.
func KeyPermissionsTooOpen(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Mode().Perm()&0077 != 0, nil
}
