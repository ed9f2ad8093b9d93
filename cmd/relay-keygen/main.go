// Command relay-keygen generates a daemon's long-lived X25519 keypair and
// prints the pairing URL clients use to find it through the relay.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relaybridge/relaybridge/e2eecrypto"
	"github.com/relaybridge/relaybridge/pairing"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type ready struct {
	Version            string `json:"version"`
	Commit             string `json:"commit"`
	Date               string `json:"date"`
	ServerID           string `json:"server_id"`
	KeyFile            string `json:"key_file"`
	PairingURL         string `json:"pairing_url"`
	DaemonPublicKeyB64 string `json:"daemon_public_key_b64"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	showVersion := false

	serverID := envString("RELAY_SERVER_ID", "")
	endpoint := envString("RELAY_ENDPOINT", "")
	appBase := envString("RELAY_PAIRING_APP_BASE", "")
	keyFile := envString("RELAY_KEY_FILE", "")
	var overwrite, reuse bool

	fs := flag.NewFlagSet("relay-keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&serverID, "server-id", serverID, "daemon's serverId on the relay (env: RELAY_SERVER_ID)")
	fs.StringVar(&endpoint, "endpoint", endpoint, "relay host:port clients should dial (env: RELAY_ENDPOINT)")
	fs.StringVar(&appBase, "app-base", appBase, "pairing URL prefix before the fragment, e.g. https://app.example.com/pair (env: RELAY_PAIRING_APP_BASE)")
	fs.StringVar(&keyFile, "key-file", keyFile, "output file for the daemon keypair (default: ./daemon.key) (env: RELAY_KEY_FILE)")
	fs.BoolVar(&overwrite, "overwrite", false, "overwrite an existing key file with a freshly generated keypair")
	fs.BoolVar(&reuse, "reuse", false, "reuse an existing key file's keypair instead of generating a new one and print its pairing URL")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if showVersion {
		fmt.Fprintf(stdout, "relay-keygen %s (%s, %s)\n", version, commit, date)
		return 0
	}

	usageErr := func(msg string) int {
		if msg != "" {
			fmt.Fprintln(stderr, msg)
		}
		fs.Usage()
		return 2
	}

	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return usageErr("missing --server-id")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return usageErr("missing --endpoint")
	}
	appBase = strings.TrimSpace(appBase)
	if appBase == "" {
		return usageErr("missing --app-base")
	}
	if keyFile == "" {
		keyFile = "daemon.key"
	}

	if overwrite && reuse {
		return usageErr("--overwrite and --reuse are mutually exclusive")
	}

	var kp e2eecrypto.KeyPair
	switch {
	case reuse:
		loaded, err := pairing.LoadKeypairFile(keyFile)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		kp = loaded
	default:
		if !overwrite && fileExists(keyFile) {
			fmt.Fprintf(stderr, "refusing to overwrite existing file: %s (use --overwrite, or --reuse to print its pairing URL)\n", keyFile)
			return 2
		}
		generated, err := e2eecrypto.GenerateKeyPair()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if err := pairing.SaveKeypairFile(keyFile, generated); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		kp = generated
	}

	offer := pairing.NewOffer(serverID, kp, endpoint)
	pairingURL, err := pairing.BuildPairingURL(appBase, offer)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	_ = json.NewEncoder(stdout).Encode(ready{
		Version:            version,
		Commit:             commit,
		Date:               date,
		ServerID:           serverID,
		KeyFile:            absOr(keyFile),
		PairingURL:         pairingURL,
		DaemonPublicKeyB64: offer.DaemonPublicKeyB64,
	})
	return 0
}

func absOr(path string) string {
	if path == "" {
		return ""
	}
	a, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return a
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
