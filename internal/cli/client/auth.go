package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage server credentials",
		Long:  "Store, clear and show the server URL and API key used by labelrag",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save server URL and API key",
		Long:  "Store the API key and URL in the global config (~/.config/labelrag/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.InOrStdin(), cmd.OutOrStdout(), apiKey, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiKey, "key", "", "API key (prompted when empty)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "Server URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed")
			return nil
		},
	}
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which server and key will be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagKey, flagURL := credentialFlags(cmd)
			creds, err := ResolveCredentials(flagKey, flagURL)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return printAuthStatus(cmd.OutOrStdout(), creds, outputJSON)
		},
	}
}

func runAuthLogin(in io.Reader, out io.Writer, apiKey, apiURL string) error {
	if apiKey == "" {
		fmt.Fprint(out, "Enter API key (empty for an open server): ")
		input, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey = strings.TrimSpace(input)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIKey: apiKey, APIURL: apiURL}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(out, "Credentials saved")
	return nil
}

func printAuthStatus(out io.Writer, creds *Credentials, outputJSON bool) error {
	if outputJSON {
		data, err := json.MarshalIndent(map[string]interface{}{
			"api_url": creds.APIURL,
			"api_key": maskAPIKey(creds.APIKey),
			"source":  string(creds.Source),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "API URL: %s (%s)\n", creds.APIURL, creds.Source)
	fmt.Fprintf(out, "API Key: %s\n", maskAPIKey(creds.APIKey))
	return nil
}

func maskAPIKey(key string) string {
	switch {
	case key == "":
		return "(none)"
	case len(key) < 12:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
