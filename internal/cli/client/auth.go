package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const verifyTimeout = 10 * time.Second

func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}

	cmd.AddCommand(authLoginCmd(), authLogoutCmd(), authStatusCmd())
	return cmd
}

func authLoginCmd() *cobra.Command {
	var (
		key, url string
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key to the global config",
		Long: `Save an API key and URL for later commands.

The key is read from stdin when --key is omitted. Unless --no-verify is set,
the key is checked against the server before it is saved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var verify func(context.Context, *GlobalConfig) error
			if !noVerify {
				verify = verifyCredentials
			}
			return runAuthLogin(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), GlobalConfig{APIKey: key, APIURL: url}, verify)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "API key (akb_...)")
	cmd.Flags().StringVar(&url, "url", defaultAPIURL, "API URL")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Save without contacting the server")
	return cmd
}

func authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which credentials would be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := ResolveCredentials(credentialFlags(cmd))
			if err != nil {
				return err
			}
			return writeAuthStatus(cmd.OutOrStdout(), creds, outputJSON(cmd))
		},
	}
}

func runAuthLogin(ctx context.Context, in io.Reader, out io.Writer, cfg GlobalConfig, verify func(context.Context, *GlobalConfig) error) error {
	if cfg.APIKey == "" {
		fmt.Fprint(out, "API key: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		cfg.APIKey = strings.TrimSpace(line)
	}
	if !IsValidAPIKey(cfg.APIKey) {
		return errors.New("invalid API key format (expected akb_ followed by 64 hex characters)")
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if verify != nil {
		if err := verify(ctx, &cfg); err != nil {
			return err
		}
	}

	if err := SaveGlobalConfig(&cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in to %s\n", cfg.APIURL)
	return nil
}

// verifyCredentials makes one authenticated call. Only an auth rejection
// fails the login; an unreachable server is reported as such.
func verifyCredentials(ctx context.Context, cfg *GlobalConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	_, err := NewAPIClientWithConfig(cfg.APIKey, cfg.APIURL).Get(ctx, "/agents")
	var apiErr *APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("server rejected the key: %s", apiErr.Message)
	default:
		return fmt.Errorf("could not reach %s (use --no-verify to save anyway): %w", cfg.APIURL, err)
	}
}

func writeAuthStatus(w io.Writer, creds Credentials, asJSON bool) error {
	if asJSON {
		status := map[string]interface{}{
			"authenticated": creds.Authenticated(),
			"key_source":    creds.KeySource,
			"api_url":       creds.APIURL,
			"url_source":    creds.URLSource,
		}
		if creds.Authenticated() {
			status["api_key"] = maskAPIKey(creds.APIKey)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	if !creds.Authenticated() {
		fmt.Fprintln(w, "Not authenticated. Run 'agentkb auth login' or set "+envAPIKey+".")
		return nil
	}
	fmt.Fprintf(w, "API key: %s (from %s)\n", maskAPIKey(creds.APIKey), creds.KeySource)
	fmt.Fprintf(w, "API URL: %s (from %s)\n", creds.APIURL, creds.URLSource)
	return nil
}

// maskAPIKey keeps the akb_ prefix and the last four characters.
func maskAPIKey(key string) string {
	if len(key) < 12 {
		return "***"
	}
	return key[:len(apiKeyPrefix)] + "..." + key[len(key)-4:]
}
