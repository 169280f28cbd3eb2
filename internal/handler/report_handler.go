package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AryaDuhan/Whatsapp-BOT/internal/dto"
	"github.com/AryaDuhan/Whatsapp-BOT/pkg/response"
)

type reportService interface {
	Summary(ctx context.Context, userID string) (*dto.AttendanceReport, error)
	RenderPDF(ctx context.Context, userID string) ([]byte, error)
	RenderCSV(ctx context.Context, userID string) ([]byte, error)
}

// ReportHandler exposes the ops view of a user's attendance.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Summary returns the cached JSON report for one user.
func (h *ReportHandler) Summary(c *gin.Context) {
	report, err := h.reports.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Export streams the report as a PDF or CSV attachment depending on the
// format query parameter. PDF is the default.
func (h *ReportHandler) Export(c *gin.Context) {
	userID := c.Param("id")

	switch c.DefaultQuery("format", "pdf") {
	case "csv":
		data, err := h.reports.RenderCSV(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="attendance-report.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	default:
		data, err := h.reports.RenderPDF(c.Request.Context(), userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="attendance-report.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	}
}
