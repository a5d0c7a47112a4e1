package cmd

import (
	"context"
	"fmt"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/auth"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/output"
	"github.com/ecowatch/ecowatch/internal/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [provider]",
	Short: "Sign in via an OAuth provider",
	Long: `Sign in using the authorization-code-with-PKCE flow.
Opens the provider's authorization URL and exchanges the callback code for tokens.`,
	Example: fmt.Sprintf(`  - %s login google`, constants.ProjectName),
	Run:     runLogin,
	Args:    cobra.MaximumNArgs(1),
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return
	}

	client, _, err := newTransport(cfg)
	if err != nil {
		output.Errorf(err.Error())
		return
	}

	provider := ""
	if len(args) > 0 {
		provider = args[0]
	}

	service := NewLoginService(client, NewOutputWrapper())
	if err = service.Login(cmd.Context(), provider); err != nil {
		output.Errorf(err.Error())
	}
}

// LoginService drives the interactive PKCE login flow.
type LoginService struct {
	client transport.Interface
	output OutputInterface

	// verifierByState correlates each pending login's code verifier with
	// its state value until exchange.
	verifierByState map[string]string
}

// NewLoginService creates a new LoginService with the provided dependencies.
func NewLoginService(client transport.Interface, outputter OutputInterface) *LoginService {
	return &LoginService{
		client:          client,
		output:          outputter,
		verifierByState: map[string]string{},
	}
}

// Login runs the full flow: provider selection, PKCE challenge, authorization
// URL, and code exchange.
func (s *LoginService) Login(ctx context.Context, provider string) error {
	if provider == "" {
		chosen, err := s.chooseProvider(ctx)
		if err != nil {
			return err
		}
		provider = chosen
	}

	verifier, err := auth.RandomVerifier(constants.PKCEDefaultVerifierLength)
	if err != nil {
		return fmt.Errorf("failed to generate code verifier: %w", err)
	}
	challenge := auth.ChallengeFromVerifier(verifier)

	resp, err := s.client.BeginLogin(ctx, provider, challenge)
	if err != nil {
		return fmt.Errorf("failed to begin login: %w", err)
	}

	state := resp.State
	if state == "" {
		// Some backend revisions leave state generation to the client.
		state = uuid.NewString()
	}
	s.verifierByState[state] = verifier

	s.output.Infof("Open this URL in your browser and authorize:")
	s.output.Blank()
	s.output.Infof("  %s", s.output.Cyan(resp.AuthURL))
	s.output.Blank()

	code := s.output.Prompt("Paste the code from the callback URL")
	if code == "" {
		return fmt.Errorf("authorization code is required")
	}
	callbackState := s.output.Prompt(fmt.Sprintf("Paste the state (enter for %s)", state))
	if callbackState == "" {
		callbackState = state
	}

	storedVerifier, ok := s.verifierByState[callbackState]
	if !ok {
		return fmt.Errorf("no pending login for state %q", callbackState)
	}
	delete(s.verifierByState, callbackState)

	if _, err = s.client.ExchangeCode(ctx, api.ExchangeRequest{
		Provider:     provider,
		Code:         code,
		State:        callbackState,
		CodeVerifier: storedVerifier,
	}); err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	if userID := s.client.UserID(); userID != "" {
		s.output.Successf("Signed in as user %s", s.output.Bold(userID))
	} else {
		s.output.Successf("Signed in")
	}
	return nil
}

func (s *LoginService) chooseProvider(ctx context.Context) (string, error) {
	providers, err := s.client.Providers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load providers: %w", err)
	}
	if len(providers) == 0 {
		return "", fmt.Errorf("backend offers no login providers")
	}
	if len(providers) == 1 {
		return providers[0].Provider, nil
	}

	s.output.Infof("Available providers:")
	rows := make([][]string, 0, len(providers))
	for _, p := range providers {
		name := p.Name
		if name == "" {
			name = p.Provider
		}
		rows = append(rows, []string{p.Provider, name})
	}
	s.output.Table([]string{"Provider", "Name"}, rows)

	choice := s.output.Prompt("Provider")
	if choice == "" {
		return "", fmt.Errorf("provider is required")
	}
	return choice, nil
}
