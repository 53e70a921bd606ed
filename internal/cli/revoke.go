package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var revokeAdminAddr string

var revokeCmd = &cobra.Command{
	Use:   "revoke <node-id>",
	Short: "Trigger a revocation against a node ID (identity manager only)",
	Long: `revoke dials the local admin RPC endpoint of a running identity-manager
peer and issues a "revoke" command, printing the minted revocation
record's name on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runRevoke,
}

func init() {
	rootCmd.AddCommand(revokeCmd)
	revokeCmd.Flags().StringVar(&revokeAdminAddr, "admin-addr", "127.0.0.1:7701", "admin RPC listen address of the target peer")
}

type revokeCommand struct {
	Command       string `json:"command"`
	RevokedNodeID string `json:"revoked_node_id"`
}

type revokeResponse struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runRevoke(cmd *cobra.Command, args []string) error {
	revokedNodeID := args[0]

	u := url.URL{Scheme: "ws", Host: revokeAdminAddr, Path: "/admin"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connecting to admin endpoint %s: %w", revokeAdminAddr, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(revokeCommand{Command: "revoke", RevokedNodeID: revokedNodeID}); err != nil {
		return fmt.Errorf("sending revoke command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var resp revokeResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return fmt.Errorf("reading admin response: %w", err)
	}

	if resp.Status != "success" {
		return fmt.Errorf("revocation rejected: %s", resp.Error)
	}

	out, _ := json.MarshalIndent(resp.Result, "", "  ")
	fmt.Printf("revocation recorded:\n%s\n", out)
	return nil
}
