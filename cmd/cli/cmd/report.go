package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecowatch/ecowatch/internal/api"
	"github.com/ecowatch/ecowatch/internal/constants"
	"github.com/ecowatch/ecowatch/internal/output"
	"github.com/ecowatch/ecowatch/internal/transport"

	"github.com/spf13/cobra"
)

var (
	reportType        string
	reportLat         float64
	reportLng         float64
	reportAccuracy    float64
	reportDescription string
	reportPhotos      []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report an environmental violation",
	Long:  `Submit a new violation report with coordinates and optional photos.`,
	Example: fmt.Sprintf(`  - %s report --type garbage --lat 50.45 --lng 30.52 --photo dump.jpg
  - %s report --type pollution --lat 50.45 --lng 30.52 --description "oil slick on the river"`,
		constants.ProjectName, constants.ProjectName),
	Run:  runReport,
	Args: cobra.NoArgs,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportType, "type", "", "violation type (garbage, pollution, deforestation)")
	reportCmd.Flags().Float64Var(&reportLat, "lat", 0, "latitude of the violation")
	reportCmd.Flags().Float64Var(&reportLng, "lng", 0, "longitude of the violation")
	reportCmd.Flags().Float64Var(&reportAccuracy, "accuracy", 0, "GPS accuracy in meters")
	reportCmd.Flags().StringVar(&reportDescription, "description", "", "free-form description")
	reportCmd.Flags().StringArrayVar(&reportPhotos, "photo", nil, "photo file to attach (repeatable)")
	_ = reportCmd.MarkFlagRequired("type")
	_ = reportCmd.MarkFlagRequired("lat")
	_ = reportCmd.MarkFlagRequired("lng")
}

func runReport(cmd *cobra.Command, _ []string) {
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

	service := NewReportService(client, NewOutputWrapper())
	if err = service.Report(cmd.Context(), ReportParams{
		Type:        reportType,
		Lat:         reportLat,
		Lng:         reportLng,
		Accuracy:    reportAccuracy,
		Description: reportDescription,
		PhotoPaths:  reportPhotos,
	}); err != nil {
		output.Errorf(err.Error())
	}
}

// ReportParams carries the flag values of the report command.
type ReportParams struct {
	Type        string
	Lat         float64
	Lng         float64
	Accuracy    float64
	Description string
	PhotoPaths  []string
}

// ReportService submits violation reports.
type ReportService struct {
	client   transport.Interface
	output   OutputInterface
	readFile func(string) ([]byte, error)
}

// NewReportService creates a new ReportService with the provided dependencies.
func NewReportService(client transport.Interface, outputter OutputInterface) *ReportService {
	return &ReportService{
		client:   client,
		output:   outputter,
		readFile: os.ReadFile,
	}
}

// Report validates the parameters, loads the photos, and submits the report.
func (s *ReportService) Report(ctx context.Context, params ReportParams) error {
	violationType, err := parseViolationType(params.Type)
	if err != nil {
		return err
	}
	if params.Lat < -90 || params.Lat > 90 {
		return fmt.Errorf("latitude %v is out of range", params.Lat)
	}
	if params.Lng < -180 || params.Lng > 180 {
		return fmt.Errorf("longitude %v is out of range", params.Lng)
	}

	photos, err := s.loadPhotos(params.PhotoPaths)
	if err != nil {
		return err
	}

	resp, err := s.client.CreateViolation(ctx, transport.CreateViolationParams{
		Type:        violationType,
		Description: params.Description,
		Lat:         params.Lat,
		Lng:         params.Lng,
		Accuracy:    params.Accuracy,
		Photos:      photos,
	})
	if err != nil {
		return fmt.Errorf("failed to submit report: %w", err)
	}

	s.output.Successf("Violation reported")
	s.output.KeyValue("ID", resp.ID)
	if resp.Status != "" {
		s.output.KeyValue("Status", resp.Status)
	}
	return nil
}

func (s *ReportService) loadPhotos(paths []string) ([]transport.Photo, error) {
	photos := make([]transport.Photo, 0, len(paths))
	for _, path := range paths {
		content, err := s.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read photo %s: %w", path, err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if !strings.HasPrefix(contentType, "image/") {
			contentType = "image/jpeg"
		}
		photos = append(photos, transport.Photo{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Content:     content,
		})
	}
	return photos, nil
}

func parseViolationType(value string) (api.ViolationType, error) {
	switch api.ViolationType(strings.ToLower(value)) {
	case api.ViolationGarbage:
		return api.ViolationGarbage, nil
	case api.ViolationPollution:
		return api.ViolationPollution, nil
	case api.ViolationDeforestation:
		return api.ViolationDeforestation, nil
	default:
		return "", fmt.Errorf("unknown violation type %q (expected garbage, pollution, or deforestation)", value)
	}
}
