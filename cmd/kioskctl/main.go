// Copyright 2026 The RestrictedIDE Authors
// SPDX-License-Identifier: Apache-2.0

// Kioskctl is the admin CLI for the kiosk daemon. It talks to the
// daemon's unix socket; authentication happens once with "login" and
// the session token is saved locally (mode 0600), like SSH keys.
//
// Usage:
//
//	kioskctl login                    authenticate and save the session token
//	kioskctl logout                   end the admin session
//	kioskctl status                   show daemon enforcement status
//	kioskctl exit                     approve kiosk shutdown
//	kioskctl policy get               print the effective policy
//	kioskctl policy update <file>     apply a policy fragment from a JSON file
//	kioskctl audit recent             print recent audit records
//	kioskctl audit export <out>       export the full trail (zstd-compressed JSONL)
//	kioskctl check-url <url>          test a URL against the active policy
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/MMI122/RestrictedIDE/lib/ipc"
	"github.com/MMI122/RestrictedIDE/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("kioskctl", pflag.ContinueOnError)
	socket := flags.String("socket", defaultSocketPath(), "path to the daemon admin socket")
	tokenFile := flags.String("token-file", defaultTokenPath(), "path to the saved session token")
	limit := flags.Int("limit", 50, "maximum records for 'audit recent'")
	recordType := flags.String("type", "", "filter 'audit recent' by record type (AUDIT or SECURITY)")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("kioskctl %s\n", version.Info())
		return nil
	}

	remaining := flags.Args()
	if len(remaining) == 0 {
		return fmt.Errorf("no command given (see kioskctl --help)")
	}
	command, rest := remaining[0], remaining[1:]

	client, err := ipc.Dial(*socket)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer client.Close()

	ctl := &controller{client: client, tokenPath: *tokenFile}

	switch command {
	case "login":
		return ctl.login()
	case "logout":
		return ctl.logout()
	case "status":
		return ctl.status()
	case "exit":
		return ctl.requestExit()
	case "policy":
		return ctl.policy(rest)
	case "audit":
		return ctl.audit(rest, *limit, *recordType)
	case "check-url":
		if len(rest) != 1 {
			return fmt.Errorf("usage: kioskctl check-url <url>")
		}
		return ctl.checkURL(rest[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

type controller struct {
	client    *ipc.Client
	tokenPath string
}

func (c *controller) login() error {
	fmt.Fprint(os.Stderr, "Admin password: ")
	password, err := readPassword()
	if err != nil {
		return err
	}

	response, err := c.client.Call(ipc.OpLogin, "", ipc.LoginRequest{Password: password})
	if err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("%s", response.Error)
	}

	var result struct {
		Token string `cbor:"token"`
	}
	if err := ipc.Unmarshal(response.Data, &result); err != nil {
		return fmt.Errorf("decoding login result: %w", err)
	}
	if err := saveToken(c.tokenPath, result.Token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Logged in.")
	return nil
}

func (c *controller) logout() error {
	token, _ := loadToken(c.tokenPath)
	if _, err := c.client.Call(ipc.OpLogout, token, nil); err != nil {
		return err
	}
	os.Remove(c.tokenPath)
	fmt.Fprintln(os.Stderr, "Logged out.")
	return nil
}

func (c *controller) status() error {
	response, err := c.client.Call(ipc.OpStatus, "", nil)
	if err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("%s", response.Error)
	}
	var status ipc.Status
	if err := ipc.Unmarshal(response.Data, &status); err != nil {
		return fmt.Errorf("decoding status: %w", err)
	}
	fmt.Printf("environment:     %s\n", status.Environment)
	fmt.Printf("policy:          %s %s\n", status.PolicyName, status.PolicyVersion)
	fmt.Printf("interception:    %s\n", status.Interception)
	fmt.Printf("process guard:   %v\n", status.GuardRunning)
	fmt.Printf("authenticated:   %v\n", status.Authenticated)
	fmt.Printf("exit requested:  %v\n", status.ExitRequested)
	fmt.Printf("dropped records: %d\n", status.DroppedRecords)
	return nil
}

func (c *controller) requestExit() error {
	if err := c.privileged(ipc.OpRequestExit, nil, nil); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Exit approved; the daemon will shut down cleanly.")
	return nil
}

func (c *controller) policy(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: kioskctl policy get | policy update <file>")
	}
	switch args[0] {
	case "get":
		var active map[string]any
		if err := c.privileged(ipc.OpPolicyGet, nil, &active); err != nil {
			return err
		}
		pretty, err := json.MarshalIndent(active, "", "  ")
		if err != nil {
			return fmt.Errorf("rendering policy: %w", err)
		}
		fmt.Println(string(pretty))
		return nil
	case "update":
		if len(args) != 2 {
			return fmt.Errorf("usage: kioskctl policy update <file>")
		}
		fragment, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading policy file: %w", err)
		}
		if err := c.privileged(ipc.OpPolicyUpdate, fragment, nil); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Policy updated.")
		return nil
	default:
		return fmt.Errorf("unknown policy subcommand %q", args[0])
	}
}

func (c *controller) audit(args []string, limit int, recordType string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: kioskctl audit recent | audit export <file>")
	}
	switch args[0] {
	case "recent":
		var lines []json.RawMessage
		request := ipc.AuditRequest{Limit: limit, Type: strings.ToUpper(recordType)}
		if err := c.privileged(ipc.OpAuditRecent, request, &lines); err != nil {
			return err
		}
		for _, line := range lines {
			if err := printJSON(line); err != nil {
				return err
			}
		}
		return nil
	case "export":
		if len(args) != 2 {
			return fmt.Errorf("usage: kioskctl audit export <file>")
		}
		var compressed []byte
		if err := c.privileged(ipc.OpAuditExport, nil, &compressed); err != nil {
			return err
		}
		if err := os.WriteFile(args[1], compressed, 0600); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d compressed bytes to %s\n", len(compressed), args[1])
		return nil
	default:
		return fmt.Errorf("unknown audit subcommand %q", args[0])
	}
}

func (c *controller) checkURL(url string) error {
	response, err := c.client.Call(ipc.OpValidateURL, "", ipc.URLRequest{URL: url})
	if err != nil {
		return err
	}
	if response.Success {
		fmt.Println("allowed")
		return nil
	}
	fmt.Printf("blocked: %s\n", response.Error)
	return nil
}

// privileged issues a token-bearing call and decodes the response
// data into out (which may be nil).
func (c *controller) privileged(op string, payload any, out any) error {
	token, err := loadToken(c.tokenPath)
	if err != nil {
		return fmt.Errorf("not logged in (run kioskctl login first)")
	}
	response, err := c.client.Call(op, token, payload)
	if err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("%s", response.Error)
	}
	if out != nil {
		if err := ipc.Unmarshal(response.Data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func readPassword() (string, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", fmt.Errorf("no terminal available for the password prompt")
	}
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(passwordBytes), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0600)
}

func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func printJSON(raw json.RawMessage) error {
	var buffer bytes.Buffer
	if err := json.Indent(&buffer, raw, "", "  "); err != nil {
		// Not JSON after all; print as-is.
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buffer.String())
	return nil
}

func defaultSocketPath() string {
	if os.Geteuid() == 0 {
		return "/var/lib/restricted-ide/kioskd.sock"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "kioskd.sock"
	}
	return filepath.Join(home, ".restricted-ide", "kioskd.sock")
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kioskctl-token"
	}
	return filepath.Join(home, ".restricted-ide", "token")
}
