// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quantum-key-service/internal/domain"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "qkeyctl",
		Short: "Quantum Key Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("QKEYCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set QKEYCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(rotateCmd())
	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(distributeCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qkeyctl version %s\n", version)
		},
	}
}

// postJSON はAPIにJSONをPOSTしてレスポンス本文を返す。
func postJSON(path string, body any, wantStatus ...int) ([]byte, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("--api-url is required (or set QKEYCTL_API_URL)")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	resp, err := httpClient.Post(apiURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	for _, status := range wantStatus {
		if resp.StatusCode == status {
			return respBody, nil
		}
	}
	return nil, handleErrorResponse(resp.StatusCode, respBody)
}

// generateCmd は鍵の生成コマンド。
func generateCmd() *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new key for a security tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/v1/keys", map[string]string{"tier": tier}, http.StatusCreated)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				KeyID     string `json:"key_id"`
				Algorithm string `json:"algorithm"`
				ExpiresAt string `json:"expires_at"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("Generated %s key %s (expires %s)\n", result.Algorithm, result.KeyID, result.ExpiresAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "Security tier: standard, high, quantum_safe (required)")
	cmd.MarkFlagRequired("tier")
	return cmd
}

// listCmd は鍵一覧の取得コマンド。
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all key ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set QKEYCTL_API_URL)")
			}
			resp, err := httpClient.Get(apiURL + "/v1/keys")
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				KeyIDs []string `json:"key_ids"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			for _, id := range result.KeyIDs {
				fmt.Println(id)
			}
			return nil
		},
	}
}

// rotateCmd はローテーションスイープの即時実行コマンド。
func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Sweep and replace expired keys now",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/v1/keys/rotate", map[string]string{}, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Rotated int `json:"rotated"`
				Failed  int `json:"failed"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("Rotated %d key(s), %d failed\n", result.Rotated, result.Failed)
			return nil
		},
	}
}

// encryptCmd はペイロードの暗号化コマンド。
func encryptCmd() *cobra.Command {
	var tier string
	var payload string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a JSON payload under a security tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload must be valid JSON")
			}
			body, err := postJSON("/v1/encrypt", map[string]json.RawMessage{
				"tier":    json.RawMessage(`"` + tier + `"`),
				"payload": json.RawMessage(payload),
			}, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Envelope string `json:"envelope"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Println(result.Envelope)
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "Security tier: standard, high, quantum_safe (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload to encrypt (required)")
	cmd.MarkFlagRequired("tier")
	cmd.MarkFlagRequired("payload")
	return cmd
}

// decryptCmd はエンベロープの復号コマンド。
func decryptCmd() *cobra.Command {
	var envelope string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an encryption envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/v1/decrypt", map[string]string{"envelope": envelope}, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Println(string(result.Payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&envelope, "envelope", "", "Envelope string <algorithm>:<keyId>:<ciphertext> (required)")
	cmd.MarkFlagRequired("envelope")
	return cmd
}

// verifyCmd はトランザクション検証コマンド。JSONファイルを読み込んで検証する。
func verifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a transaction from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading transaction file: %w", err)
			}
			var tx json.RawMessage = raw
			body, err := postJSON("/v1/verify", tx, http.StatusOK)
			if err != nil {
				return err
			}

			var result domain.VerificationResult
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if output == "json" {
				fmt.Println(string(body))
				// JSON出力でも無効な結果は終了コードで失敗を伝える
				return result.Err()
			}
			if result.Valid {
				fmt.Println("VALID")
				return nil
			}
			fmt.Println("INVALID")
			for i, kind := range result.Errors {
				recommendation := ""
				if i < len(result.Recommendations) {
					recommendation = result.Recommendations[i]
				}
				fmt.Printf("  %s: %s\n", kind, recommendation)
			}
			return result.Err()
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to transaction JSON file (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// distributeCmd はノードへの鍵配布コマンド。
func distributeCmd() *cobra.Command {
	var nodes string
	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Issue one fresh quantum-safe key per node",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeIDs := strings.Split(nodes, ",")
			body, err := postJSON("/v1/distribute", map[string][]string{"node_ids": nodeIDs},
				http.StatusOK, http.StatusMultiStatus)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Assignments map[string]string `json:"assignments"`
				FailedNodes []string          `json:"failed_nodes"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			for _, nodeID := range nodeIDs {
				if keyID, ok := result.Assignments[nodeID]; ok {
					fmt.Printf("%s\t%s\n", nodeID, keyID)
				}
			}
			if len(result.FailedNodes) > 0 {
				fmt.Printf("Failed nodes: %s\n", strings.Join(result.FailedNodes, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nodes, "nodes", "", "Comma-separated node ids (required)")
	cmd.MarkFlagRequired("nodes")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
