package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/chat"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/output"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <violation-id>",
	Short: "Join the discussion on a violation",
	Long: `Open an interactive chat session for a violation.
Messages arrive live over a WebSocket; type a line to send, /quit to leave.`,
	Example: fmt.Sprintf(`  - %s chat abc123`, constants.ProjectName),
	Run:     runChat,
	Args:    cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return
	}

	client, store, err := newTransport(cfg)
	if err != nil {
		output.Errorf(err.Error())
		return
	}

	userID := store.LoadUserID()
	if userID == "" {
		output.Errorf("not signed in, run %s login first", constants.ProjectName)
		return
	}

	socketURL := cfg.ChatSocketURL(userID)
	service := NewChatService(client, NewOutputWrapper(), os.Stdin)
	if err = service.Run(cmd.Context(), args[0], socketURL); err != nil {
		output.Errorf(err.Error())
	}
}

// ChatService runs the interactive chat loop on top of a live session.
type ChatService struct {
	client chat.HTTPClient
	output OutputInterface
	input  io.Reader

	// mu guards seen; snapshot callbacks arrive from session goroutines.
	mu sync.Mutex
	// seen tracks which message ids have been printed already so that
	// snapshot callbacks only echo new arrivals.
	seen map[string]bool
}

// NewChatService creates a new ChatService with the provided dependencies.
func NewChatService(client chat.HTTPClient, outputter OutputInterface, input io.Reader) *ChatService {
	return &ChatService{
		client: client,
		output: outputter,
		input:  input,
		seen:   map[string]bool{},
	}
}

// Run opens the session and reads lines from input until EOF or /quit.
func (s *ChatService) Run(ctx context.Context, violationID, socketURL string) error {
	session := chat.NewSession(s.client, violationID, socketURL, slog.Default(),
		chat.WithStateHandler(s.printState),
		chat.WithMessageHandler(s.printNew),
	)
	session.Open(ctx)
	defer session.Close()

	s.output.Infof("Joined chat for violation %s. Type a message, /quit to leave.", violationID)

	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return nil
		case line == "":
			continue
		default:
			if err := session.Send(ctx, line); err != nil {
				s.output.Errorf("failed to send: %v", err)
			}
		}
	}
	return scanner.Err()
}

func (s *ChatService) printState(state chat.State) {
	switch state {
	case chat.StateConnected:
		s.output.Infof("connected")
	case chat.StateConnecting:
		s.output.Infof("connecting...")
	case chat.StateDisconnected:
		s.output.Warningf("disconnected")
	}
}

func (s *ChatService) printNew(messages []api.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if msg.ID == "" || s.seen[msg.ID] {
			continue
		}
		s.seen[msg.ID] = true
		author := msg.UserName
		if author == "" {
			author = msg.UserID
		}
		if msg.IsSystem {
			author = "system"
		}
		s.output.Infof("[%s] %s: %s",
			msg.CreatedAt.Format("15:04:05"), s.output.Bold(author), msg.Text)
	}
}
