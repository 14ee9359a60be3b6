package git

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"mercator-hq/drivetwin/pkg/config"
)

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.GitAuthConfig
		wantKind string
		wantErr  string
	}{
		{name: "nil config", cfg: nil, wantKind: AuthNone},
		{name: "empty type", cfg: &config.GitAuthConfig{}, wantKind: AuthNone},
		{name: "none", cfg: &config.GitAuthConfig{Type: "none"}, wantKind: AuthNone},
		{name: "token", cfg: &config.GitAuthConfig{Type: "token", Token: "ghp_test"}, wantKind: AuthToken},
		{name: "token without token", cfg: &config.GitAuthConfig{Type: "token"}, wantErr: "non-empty token"},
		{name: "ssh", cfg: &config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/home/sim/.ssh/id_ed25519"}, wantKind: AuthSSH},
		{name: "ssh without key", cfg: &config.GitAuthConfig{Type: "ssh"}, wantErr: "ssh_key_path"},
		{name: "unknown", cfg: &config.GitAuthConfig{Type: "kerberos"}, wantErr: "unknown auth type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := NewCredentials(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("NewCredentials() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCredentials() error = %v", err)
			}
			if creds.Kind() != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", creds.Kind(), tt.wantKind)
			}
		})
	}
}

func TestCredentialsMethod(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		creds, _ := NewCredentials(nil)
		method, err := creds.Method()
		if err != nil || method != nil {
			t.Errorf("Method() = %v, %v, want nil, nil", method, err)
		}
	})

	t.Run("token", func(t *testing.T) {
		creds, err := NewCredentials(&config.GitAuthConfig{Type: "token", Token: "ghp_test"})
		if err != nil {
			t.Fatal(err)
		}
		method, err := creds.Method()
		if err != nil {
			t.Fatalf("Method() error = %v", err)
		}
		basic, ok := method.(*http.BasicAuth)
		if !ok {
			t.Fatalf("Method() = %T, want *http.BasicAuth", method)
		}
		if basic.Password != "ghp_test" {
			t.Errorf("Password = %q, want ghp_test", basic.Password)
		}
	})
}

func TestCredentialsSSHKey(t *testing.T) {
	dir := t.TempDir()
	sshMethod := func(key string) error {
		creds, err := NewCredentials(&config.GitAuthConfig{Type: "ssh", SSHKeyPath: key})
		if err != nil {
			t.Fatal(err)
		}
		_, err = creds.Method()
		return err
	}

	t.Run("missing key", func(t *testing.T) {
		if err := sshMethod(filepath.Join(dir, "missing")); err == nil {
			t.Error("Method() should fail for a missing key")
		}
	})

	t.Run("permissions too open", func(t *testing.T) {
		key := filepath.Join(dir, "open_key")
		if err := os.WriteFile(key, []byte("not a key"), 0o644); err != nil {
			t.Fatal(err)
		}
		err := sshMethod(key)
		if err == nil || !strings.Contains(err.Error(), "permissions too open") {
			t.Errorf("Method() error = %v, want permissions error", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		key := filepath.Join(dir, "bad_key")
		if err := os.WriteFile(key, []byte("not a key"), 0o600); err != nil {
			t.Fatal(err)
		}
		err := sshMethod(key)
		if err == nil || !strings.Contains(err.Error(), "failed to load SSH key") {
			t.Errorf("Method() error = %v, want load error", err)
		}
	})
}
