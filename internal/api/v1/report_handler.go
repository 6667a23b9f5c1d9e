package v1

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"gymmaster/internal/api/response"
	"gymmaster/internal/service"
)

type ReportHandler struct {
	reportService *service.ReportService
}

func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func RegisterReportRoutes(group *gin.RouterGroup, reportService *service.ReportService, opts RouteOptions) {
	handler := NewReportHandler(reportService)

	group.GET("/dashboard", opts.auth(), staffOnly(), handler.Dashboard)

	reports := group.Group("/reports")
	reports.Use(opts.auth(), staffOnly())
	reports.GET("/revenue", handler.Revenue)
	reports.GET("/attendance", handler.Attendance)
	reports.GET("/memberships", handler.Memberships)
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	summary, err := h.reportService.Dashboard(c.Request.Context())
	if err != nil {
		handleReportServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// Revenue groups completed payments by day (default) or month.
func (h *ReportHandler) Revenue(c *gin.Context) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}

	points, err := h.reportService.Revenue(
		c.Request.Context(),
		from,
		to,
		strings.ToLower(strings.TrimSpace(c.Query("group_by"))),
	)
	if err != nil {
		handleReportServiceError(c, err)
		return
	}
	response.Success(c, points)
}

func (h *ReportHandler) Attendance(c *gin.Context) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	branchID, ok := uuidQuery(c, "branch_id")
	if !ok {
		return
	}

	points, err := h.reportService.Attendance(c.Request.Context(), from, to, branchID)
	if err != nil {
		handleReportServiceError(c, err)
		return
	}
	response.Success(c, points)
}

func (h *ReportHandler) Memberships(c *gin.Context) {
	breakdown, err := h.reportService.Memberships(c.Request.Context())
	if err != nil {
		handleReportServiceError(c, err)
		return
	}
	response.Success(c, breakdown)
}

func handleReportServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		badRequest(c, "invalid report range")
	default:
		internalError(c, err)
	}
}
