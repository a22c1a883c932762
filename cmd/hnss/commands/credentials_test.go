package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveCredentials(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile, []byte(`{username: "alice", password: "from-file"}`), 0600))
	// json5 allows the comments and unquoted keys people put in hand written files
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.local.json"), []byte(`{
		// rotated
		password: "local",
	}`), 0600))
	missing := filepath.Join(dir, "missing.json")

	testCases := []struct {
		name     string
		flags    Credentials
		authFile string
		fallback string
		expected Credentials
		fails    bool
	}{
		{
			name:     "flags only",
			flags:    Credentials{Username: "bob", Password: "pw"},
			fallback: missing,
			expected: Credentials{Username: "bob", Password: "pw"},
		},
		{
			name:     "explicit file with local override",
			authFile: authFile,
			expected: Credentials{Username: "alice", Password: "local"},
		},
		{
			name:     "flags win over file",
			flags:    Credentials{Username: "carol"},
			fallback: authFile,
			expected: Credentials{Username: "carol", Password: "local"},
		},
		{
			name:     "explicit file must exist",
			flags:    Credentials{Username: "bob", Password: "pw"},
			authFile: missing,
			fails:    true,
		},
		{
			name:     "no password",
			flags:    Credentials{Username: "bob"},
			fallback: missing,
			fails:    true,
		},
		{
			name:  "nothing",
			fails: true,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			creds, err := resolveCredentials(test.flags, test.authFile, test.fallback)
			if test.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, creds)
		})
	}
}
