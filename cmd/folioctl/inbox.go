package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendConversation string
	sendName         string
	sendEmail        string
	sendAsOwner      bool
	inboxJSON        bool
	readKeepUnread   bool
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(watchCmd)

	sendCmd.Flags().StringVar(&sendConversation, "conversation", "", "Conversation ID to append to")
	sendCmd.Flags().StringVar(&sendName, "name", "", "Visitor name")
	sendCmd.Flags().StringVar(&sendEmail, "email", "", "Visitor email")
	sendCmd.Flags().BoolVar(&sendAsOwner, "owner", false, "Send as the owner (requires --password)")

	inboxCmd.Flags().BoolVar(&inboxJSON, "json", false, "Output results as JSON")
	readCmd.Flags().BoolVar(&readKeepUnread, "keep-unread", false, "Do not mark the conversation as read")
}

// Message matches inbox.Message
type Message struct {
	ID         string   `json:"id"`
	SenderType string   `json:"senderType"`
	Body       string   `json:"body"`
	CreatedAt  int64    `json:"createdAt"`
	Flags      []string `json:"flags,omitempty"`
}

// Conversation matches inbox.Conversation
type Conversation struct {
	ID                 string    `json:"id"`
	VisitorName        string    `json:"visitorName"`
	LastMessageSnippet string    `json:"lastMessageSnippet"`
	UpdatedAt          int64     `json:"updatedAt"`
	UnreadCount        int       `json:"unreadCount"`
	Status             string    `json:"status"`
	Messages           []Message `json:"messages"`
}

// ConversationsResponse matches internal/http/types.go ConversationsResponse
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	UnreadTotal   int            `json:"unreadTotal"`
	Mode          string         `json:"mode"`
}

// AppendRequest matches internal/http/types.go AppendRequest
type AppendRequest struct {
	ConversationID string          `json:"conversationId,omitempty"`
	Body           string          `json:"body"`
	Sender         string          `json:"sender"`
	Visitor        *VisitorDetails `json:"visitor,omitempty"`
}

// VisitorDetails matches inbox.VisitorDetails
type VisitorDetails struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// SessionResponse matches the GET /api/v1/session response.
type SessionResponse struct {
	VisitorToken string `json:"visitorToken"`
}

// AppendResponse matches internal/http/types.go AppendResponse
type AppendResponse struct {
	ConversationID string `json:"conversationId"`
}

var sendCmd = &cobra.Command{
	Use:   "send <body>",
	Short: "Append a message to a conversation",
	Long: `Append a message to the inbox, starting a new conversation when needed.

Examples:
  # Send as a visitor; a token is issued when --visitor is not given
  folioctl send "Are you open to contract work?" --name Ada --email ada@example.com

  # Follow up in the same thread
  folioctl send "Any news?" --visitor visitor-0a1b2c3d4

  # Reply as the owner
  folioctl send "Yes, let's talk" --owner --conversation 3f1c... --password secret`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	req := AppendRequest{
		ConversationID: sendConversation,
		Body:           strings.Join(args, " "),
		Sender:         "visitor",
	}
	if sendAsOwner {
		req.Sender = "owner"
	}
	if sendName != "" || sendEmail != "" {
		req.Visitor = &VisitorDetails{Name: sendName, Email: sendEmail}
	}

	c := newClient()
	if !sendAsOwner && c.visitor == "" {
		var sess SessionResponse
		if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/session", nil, &sess); err != nil {
			return fmt.Errorf("requesting visitor token: %w", err)
		}
		c.visitor = sess.VisitorToken
		fmt.Fprintf(cmd.OutOrStdout(), "Visitor token: %s\n", c.visitor)
	}

	var resp AppendResponse
	if err := c.do(cmd.Context(), http.MethodPost, "/api/v1/messages", req, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conversation: %s\n", resp.ConversationID)
	return nil
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List conversations",
	Long: `List all conversations, most recently updated first.

Examples:
  folioctl inbox --password secret
  folioctl inbox --password secret --json`,
	Args: cobra.NoArgs,
	RunE: runInbox,
}

func runInbox(cmd *cobra.Command, args []string) error {
	var resp ConversationsResponse
	if err := newClient().do(cmd.Context(), http.MethodGet, "/api/v1/conversations", nil, &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inboxJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printConversations(out, resp)
	return nil
}

func printConversations(out io.Writer, resp ConversationsResponse) {
	fmt.Fprintf(out, "Mode: %s  Unread: %d\n\n", resp.Mode, resp.UnreadTotal)
	if len(resp.Conversations) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVISITOR\tSTATUS\tUNREAD\tUPDATED\tLAST MESSAGE")
	for _, c := range resp.Conversations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.VisitorName, c.Status, c.UnreadCount, formatMillis(c.UpdatedAt), c.LastMessageSnippet)
	}
	_ = w.Flush()
}

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Show a conversation and mark it read",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	c := newClient()
	path := "/api/v1/conversations/" + url.PathEscape(args[0])

	var conv Conversation
	if err := c.do(cmd.Context(), http.MethodGet, path, nil, &conv); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  [%s]\n\n", conv.VisitorName, conv.Status)
	for _, m := range conv.Messages {
		flag := ""
		if len(m.Flags) > 0 {
			flag = " (" + strings.Join(m.Flags, ",") + ")"
		}
		fmt.Fprintf(out, "%s  %-7s %s%s\n", formatMillis(m.CreatedAt), m.SenderType, m.Body, flag)
	}

	if readKeepUnread || conv.UnreadCount == 0 {
		return nil
	}
	return c.do(cmd.Context(), http.MethodPost, path+"/read", nil, nil)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream inbox changes",
	Long: `Follow the conversation stream and print a summary on every change.

Examples:
  folioctl watch --password secret`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	c := newClient()
	c.http.Timeout = 0

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, c.base+"/api/v1/conversations/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(passwordHeader, c.password)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return readEvents(resp.Body, "conversations", func(data string) error {
		var snap ConversationsResponse
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %d conversation(s), %d unread, mode %s\n",
			time.Now().Format(time.TimeOnly), len(snap.Conversations), snap.UnreadTotal, snap.Mode)
		return nil
	})
}

// readEvents calls fn with the data of each SSE event named name until r
// is exhausted.
func readEvents(r io.Reader, name string, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == name && len(data) > 0 {
				if err := fn(strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
