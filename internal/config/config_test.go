package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
domain: pay.example.com
port: 9090
listen_addr: ":9090"
db_path: /tmp/fedipay.db
log_level: debug
nostr_secret_key: 0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef
relays:
  - wss://relay.example.com
clientd_password: secret
federations:
  - id: fed-1
    clientd_url: http://localhost:3333
xmpp:
  address: xmpp.example.com:5222
  user: fedipay@xmpp.example.com
  password: hunter2
  chat_server: chat.example.com
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fedipay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	require.Equal(t, "pay.example.com", cfg.Domain)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"wss://relay.example.com"}, cfg.Relays)
	require.Len(t, cfg.Federations, 1)
	require.Equal(t, "fed-1", cfg.Federations[0].ID)
	require.Equal(t, "http://localhost:3333", cfg.Federations[0].ClientdURL)
	require.Equal(t, "chat.example.com", cfg.XMPP.ChatServer)

	// Defaults fill what the file omits.
	require.EqualValues(t, 1000, cfg.MinSendableMsat)
	require.EqualValues(t, 1_000_000_000, cfg.MaxSendableMsat)
}

func TestLoadRejectsMissingDomain(t *testing.T) {
	_, err := Load(writeConfig(t, `
nostr_secret_key: abc
relays: ["wss://r"]
federations: [{id: f, clientd_url: u}]
`))
	require.ErrorContains(t, err, "domain")
}

func TestLoadRejectsMissingFederations(t *testing.T) {
	_, err := Load(writeConfig(t, `
domain: pay.example.com
nostr_secret_key: abc
relays: ["wss://r"]
`))
	require.ErrorContains(t, err, "federation")
}

func TestLoadRejectsIncompleteFederation(t *testing.T) {
	_, err := Load(writeConfig(t, `
domain: pay.example.com
nostr_secret_key: abc
relays: ["wss://r"]
federations:
  - id: fed-1
`))
	require.ErrorContains(t, err, "clientd_url")
}
