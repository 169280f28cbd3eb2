package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	appErrors "github.com/AryaDuhan/Whatsapp-BOT/pkg/errors"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/export"
)

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReportService serves the ops-API view of a user's attendance: a cached
// JSON summary plus CSV and PDF exports.
type ReportService struct {
	subjects  *SubjectService
	users     *UserService
	cache     reportCache
	pdf       *export.PDFExporter
	csv       *export.CSVExporter
	threshold int
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(subjects *SubjectService, users *UserService, cache reportCache, threshold int, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		subjects:  subjects,
		users:     users,
		cache:     cache,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		threshold: threshold,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

func reportCacheKey(userID string) string {
	return "report:summary:" + userID
}

// Summary returns the consolidated report, served from cache when fresh.
func (s *ReportService) Summary(ctx context.Context, userID string) (*dto.AttendanceReport, error) {
	var cached dto.AttendanceReport
	if err := s.cache.Get(ctx, reportCacheKey(userID), &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	report, err := s.subjects.BuildReport(ctx, user, s.threshold)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, reportCacheKey(userID), report, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return report, nil
}

// Invalidate drops the cached summary after counters change.
func (s *ReportService) Invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, reportCacheKey(userID)); err != nil {
		s.logger.Warn("report cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// RenderPDF renders the report as a one-page table.
func (s *ReportService) RenderPDF(ctx context.Context, userID string) ([]byte, error) {
	report, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	subtitle := fmt.Sprintf("%s (%s), generated %s, target %d%%",
		report.DisplayName, report.Timezone, report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.Threshold)
	return s.pdf.Render(reportDataset(report), "Attendance Report", subtitle)
}

// RenderCSV renders the report rows as CSV.
func (s *ReportService) RenderCSV(ctx context.Context, userID string) ([]byte, error) {
	report, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(reportDataset(report))
}

func reportDataset(report *dto.AttendanceReport) export.Dataset {
	headers := []string{"Subject", "Day", "Time", "Attended", "Total", "Mass Bunks", "Holidays", "Percent", "Adjusted", "Needed", "Can Miss"}
	rows := make([]map[string]string, 0, len(report.Subjects))
	for _, row := range report.Subjects {
		rows = append(rows, map[string]string{
			"Subject":    row.Name,
			"Day":        row.Day,
			"Time":       row.StartTime,
			"Attended":   fmt.Sprintf("%d", row.Attended),
			"Total":      fmt.Sprintf("%d", row.Total),
			"Mass Bunks": fmt.Sprintf("%d", row.MassSkipped),
			"Holidays":   fmt.Sprintf("%d", row.Holidays),
			"Percent":    fmt.Sprintf("%d%%", row.Percentage),
			"Adjusted":   fmt.Sprintf("%d%%", row.PercentageAdjusted),
			"Needed":     fmt.Sprintf("%d", row.ClassesNeeded),
			"Can Miss":   fmt.Sprintf("%d", row.ClassesCanMiss),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
