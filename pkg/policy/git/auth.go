package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/drivetwin/pkg/config"
)

// Auth kinds accepted in policy.git.auth.type.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthSSH   = "ssh"
)

// Credentials hold validated repository credentials. The transport method is
// built on every clone and pull so a rotated SSH key file is picked up.
type Credentials struct {
	kind       string
	token      string
	keyPath    string
	passphrase string
}

// NewCredentials validates cfg. A nil cfg or empty type means anonymous
// access, which suits public repositories and local paths.
func NewCredentials(cfg *config.GitAuthConfig) (*Credentials, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == AuthNone {
		return &Credentials{kind: AuthNone}, nil
	}
	switch cfg.Type {
	case AuthToken:
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires non-empty token")
		}
		return &Credentials{kind: AuthToken, token: cfg.Token}, nil
	case AuthSSH:
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return &Credentials{kind: AuthSSH, keyPath: cfg.SSHKeyPath, passphrase: cfg.SSHKeyPassphrase}, nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

// Kind returns AuthNone, AuthToken or AuthSSH.
func (c *Credentials) Kind() string { return c.kind }

// Method returns the transport auth, nil for anonymous access.
func (c *Credentials) Method() (transport.AuthMethod, error) {
	switch c.kind {
	case AuthToken:
		// Hosts ignore the user name when the password is a token.
		return &http.BasicAuth{Username: "git", Password: c.token}, nil
	case AuthSSH:
		return c.sshKey()
	default:
		return nil, nil
	}
}

func (c *Credentials) sshKey() (transport.AuthMethod, error) {
	info, err := os.Stat(c.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access SSH key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("SSH key file permissions too open (%o), want 0600", perm)
	}
	pem, err := os.ReadFile(c.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	keys, err := ssh.NewPublicKeys("git", pem, c.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key: %w", err)
	}
	return keys, nil
}
