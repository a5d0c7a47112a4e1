package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/output"
	"github.com/ecowatch/ecowatch/internal/transport"

	"github.com/spf13/cobra"
)

var (
	violationsBbox  string
	closeStatus     string
	closeComment    string
	closePhotos     []string
	complainReason  string
	complainMessage string
)

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "Browse and act on reported violations",
}

var violationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List violations inside a bounding box",
	Example: fmt.Sprintf(`  - %s violations list --bbox 30.4,50.3,30.7,50.6`,
		constants.ProjectName),
	Run:  runViolationsList,
	Args: cobra.NoArgs,
}

var violationsViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show one violation",
	Run:   runViolationsView,
	Args:  cobra.ExactArgs(1),
}

var violationsCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "File a close request for a violation",
	Example: fmt.Sprintf(`  - %s violations close abc123 --status closed --comment "cleaned up"`,
		constants.ProjectName),
	Run:  runViolationsClose,
	Args: cobra.ExactArgs(1),
}

var violationsVoteCmd = &cobra.Command{
	Use:   "vote <request-id> <like|dislike|none>",
	Short: "Vote on a close request",
	Run:   runViolationsVote,
	Args:  cobra.ExactArgs(2),
}

var violationsComplainCmd = &cobra.Command{
	Use:   "complain <request-id>",
	Short: "File a complaint against a close request",
	Run:   runViolationsComplain,
	Args:  cobra.ExactArgs(1),
}

func init() {
	rootCmd.AddCommand(violationsCmd)
	violationsCmd.AddCommand(violationsListCmd)
	violationsCmd.AddCommand(violationsViewCmd)
	violationsCmd.AddCommand(violationsCloseCmd)
	violationsCmd.AddCommand(violationsVoteCmd)
	violationsCmd.AddCommand(violationsComplainCmd)

	violationsListCmd.Flags().StringVar(&violationsBbox, "bbox", "",
		"bounding box as minLng,minLat,maxLng,maxLat")
	_ = violationsListCmd.MarkFlagRequired("bbox")

	violationsCloseCmd.Flags().StringVar(&closeStatus, "status", "closed",
		"resulting status (closed or partially_closed)")
	violationsCloseCmd.Flags().StringVar(&closeComment, "comment", "", "comment for the close request")
	violationsCloseCmd.Flags().StringArrayVar(&closePhotos, "photo", nil, "evidence photo to attach (repeatable)")

	violationsComplainCmd.Flags().StringVar(&complainReason, "reason", "", "complaint reason")
	violationsComplainCmd.Flags().StringVar(&complainMessage, "message", "", "complaint message")
}

func violationsService(cmd *cobra.Command) (*ViolationsService, error) {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	client, _, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewViolationsService(client, NewOutputWrapper()), nil
}

func runViolationsList(cmd *cobra.Command, _ []string) {
	service, err := violationsService(cmd)
	if err != nil {
		output.Errorf(err.Error())
		return
	}
	if err = service.List(cmd.Context(), violationsBbox); err != nil {
		output.Errorf(err.Error())
	}
}

func runViolationsView(cmd *cobra.Command, args []string) {
	service, err := violationsService(cmd)
	if err != nil {
		output.Errorf(err.Error())
		return
	}
	if err = service.View(cmd.Context(), args[0]); err != nil {
		output.Errorf(err.Error())
	}
}

func runViolationsClose(cmd *cobra.Command, args []string) {
	service, err := violationsService(cmd)
	if err != nil {
		output.Errorf(err.Error())
		return
	}
	if err = service.Close(cmd.Context(), args[0], closeStatus, closeComment, closePhotos); err != nil {
		output.Errorf(err.Error())
	}
}

func runViolationsVote(cmd *cobra.Command, args []string) {
	service, err := violationsService(cmd)
	if err != nil {
		output.Errorf(err.Error())
		return
	}
	if err = service.Vote(cmd.Context(), args[0], args[1]); err != nil {
		output.Errorf(err.Error())
	}
}

func runViolationsComplain(cmd *cobra.Command, args []string) {
	service, err := violationsService(cmd)
	if err != nil {
		output.Errorf(err.Error())
		return
	}
	if err = service.Complain(cmd.Context(), args[0], complainReason, complainMessage); err != nil {
		output.Errorf(err.Error())
	}
}

// ViolationsService implements the violation browsing and moderation commands.
type ViolationsService struct {
	client transport.Interface
	output OutputInterface
}

// NewViolationsService creates a new ViolationsService with the provided dependencies.
func NewViolationsService(client transport.Interface, outputter OutputInterface) *ViolationsService {
	return &ViolationsService{client: client, output: outputter}
}

// List prints the violations inside the given bounding box.
func (s *ViolationsService) List(ctx context.Context, bbox string) error {
	box, err := parseBbox(bbox)
	if err != nil {
		return err
	}

	page, err := s.client.ViolationsByBbox(ctx, box)
	if err != nil {
		return fmt.Errorf("failed to list violations: %w", err)
	}
	if len(page.Items) == 0 {
		s.output.Infof("No violations in this area")
		return nil
	}

	rows := make([][]string, 0, len(page.Items))
	for _, v := range page.Items {
		rows = append(rows, []string{
			v.ID,
			string(v.Type),
			v.Status,
			fmt.Sprintf("%.5f,%.5f", v.Lat, v.Lng),
		})
	}
	s.output.Table([]string{"ID", "Type", "Status", "Location"}, rows)
	s.output.Infof("%d of %d violations", len(page.Items), page.Total)
	return nil
}

// View prints one violation in detail.
func (s *ViolationsService) View(ctx context.Context, id string) error {
	v, err := s.client.ViolationByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load violation: %w", err)
	}

	s.output.KeyValue("ID", v.ID)
	s.output.KeyValue("Type", string(v.Type))
	if v.Status != "" {
		s.output.KeyValue("Status", v.Status)
	}
	s.output.KeyValue("Location", fmt.Sprintf("%.5f, %.5f", v.Lat, v.Lng))
	if v.Accuracy > 0 {
		s.output.KeyValue("Accuracy", fmt.Sprintf("%.0f m", v.Accuracy))
	}
	if v.Description != "" {
		s.output.KeyValue("Description", v.Description)
	}
	if !v.CreatedAt.IsZero() {
		s.output.KeyValue("Reported", v.CreatedAt.Format(constants.DisplayTimeFormat))
	}
	for i, photo := range v.Photos {
		s.output.KeyValue(fmt.Sprintf("Photo %d", i+1), photo)
	}
	return nil
}

// Close files a close request for a violation.
func (s *ViolationsService) Close(ctx context.Context, id, status, comment string, photoPaths []string) error {
	if status != "closed" && status != "partially_closed" {
		return fmt.Errorf("unknown close status %q (expected closed or partially_closed)", status)
	}

	reporter := NewReportService(s.client, s.output)
	photos, err := reporter.loadPhotos(photoPaths)
	if err != nil {
		return err
	}

	req, err := s.client.CloseViolation(ctx, id, transport.CloseViolationParams{
		Status:  status,
		Comment: comment,
		Photos:  photos,
	})
	if err != nil {
		return fmt.Errorf("failed to file close request: %w", err)
	}

	s.output.Successf("Close request filed")
	s.output.KeyValue("Request ID", req.ID)
	s.output.KeyValue("Status", req.Status)
	return nil
}

// Vote casts, changes, or retracts a vote on a close request.
func (s *ViolationsService) Vote(ctx context.Context, requestID, value string) error {
	voteValue := api.VoteValue(strings.ToLower(value))
	switch voteValue {
	case api.VoteLike, api.VoteDislike, api.VoteNone:
	default:
		return fmt.Errorf("unknown vote %q (expected like, dislike, or none)", value)
	}

	resp, err := s.client.Vote(ctx, requestID, voteValue)
	if err != nil {
		return fmt.Errorf("failed to vote: %w", err)
	}

	s.output.Successf("Vote recorded")
	s.output.KeyValue("Likes", strconv.Itoa(resp.Likes))
	s.output.KeyValue("Dislikes", strconv.Itoa(resp.Dislikes))
	return nil
}

// Complain files a complaint against a close request.
func (s *ViolationsService) Complain(ctx context.Context, requestID, reason, message string) error {
	err := s.client.Complain(ctx, requestID, api.ComplaintRequest{
		Reason:  reason,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("failed to file complaint: %w", err)
	}
	s.output.Successf("Complaint filed")
	return nil
}

func parseBbox(value string) ([4]float64, error) {
	var box [4]float64
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return box, fmt.Errorf("bbox must be minLng,minLat,maxLng,maxLat")
	}
	for i, part := range parts {
		coord, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return box, fmt.Errorf("invalid bbox coordinate %q", part)
		}
		box[i] = coord
	}
	return box, nil
}
