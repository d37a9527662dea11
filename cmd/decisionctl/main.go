// Command decisionctl is an operator CLI for inspecting and driving a
// running decisioncore host: tailing its live decision stream, reading the
// current quota snapshot, and forcing a config reload. Structured the way
// the rest of the corpus's CLIs wrap a root cobra.Command with subcommands
// (e.g. the kasmos client's main.go).
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var hostFlag string

var rootCmd = &cobra.Command{
	Use:   "decisionctl",
	Short: "Inspect and drive a running decisioncore host",
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream live Decision Gate and Coordinator events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tail(hostFlag)
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Print the current Quick Task quota snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return quota(hostFlag)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload-config",
	Short: "Force the host to reload its on-disk config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postNoBody(hostFlag, "/config/reload", "config reloaded")
	},
}

var refillCmd = &cobra.Command{
	Use:   "quota-refill",
	Short: "Force the host to refill its Quick Task quota immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postNoBody(hostFlag, "/quota/refill", "quota refilled")
	},
}

var dumpStateCmd = &cobra.Command{
	Use:   "dump-state",
	Short: "Print every tracked app's PerAppState",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(hostFlag, "/state")
	},
}

var entryApp string

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Simulate a foreground switch into --app, driving the Coordinator as if the OS reported it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if entryApp == "" {
			return fmt.Errorf("decisionctl: --app is required")
		}
		return postNoBody(hostFlag, "/entry?app="+url.QueryEscape(entryApp), "entry triggered for "+entryApp)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "localhost:9090", "decisioncore diagnostics host:port")
	entryCmd.Flags().StringVar(&entryApp, "app", "", "package identifier to simulate a foreground switch into")
	rootCmd.AddCommand(tailCmd, quotaCmd, reloadCmd, refillCmd, dumpStateCmd, entryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tail(host string) error {
	u := url.URL{Scheme: "ws", Host: host, Path: "/diagnostics/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("decisionctl: dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("decisionctl: read: %w", err)
		}
		var pretty map[string]interface{}
		if err := json.Unmarshal(payload, &pretty); err != nil {
			fmt.Println(string(payload))
			continue
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	}
}

func quota(host string) error {
	return getJSON(host, "/quota")
}

func getJSON(host, path string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + host + path)
	if err != nil {
		return fmt.Errorf("decisionctl: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	var body interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decisionctl: decode %s response: %w", path, err)
	}
	out, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println(string(out))
	return nil
}

func postNoBody(host, path, okMessage string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post("http://"+host+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("decisionctl: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("decisionctl: post %s: unexpected status %s", path, resp.Status)
	}
	fmt.Println(okMessage)
	return nil
}
