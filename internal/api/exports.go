package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/Stride/internal/services"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type exportHandler struct {
	targets   *services.TargetService
	records   *services.RecordService
	checklist *services.Checklist
	now       func() time.Time
}

func (h *exportHandler) attachment(c *gin.Context, label, ext, contentType string, data []byte) {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	name := services.ExportFilename(label, ext, now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}

func (h *exportHandler) targetsCSV(c *gin.Context) {
	list, err := h.targets.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.attachment(c, "support_targets", "csv", csvContentType, services.ExportTargetsCSV(list))
}

// GET /api/export/records.csv?targetId=
func (h *exportHandler) recordsCSV(c *gin.Context) {
	list, err := h.records.ListRecords(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.attachment(c, "evaluation_records", "csv", csvContentType, services.ExportRecordsCSV(list, h.checklist))
}

func (h *exportHandler) detailCSV(c *gin.Context) {
	list, err := h.records.ListRecords(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.attachment(c, "evaluation_detail", "csv", csvContentType, services.ExportDetailCSV(list))
}

func (h *exportHandler) recordsXLSX(c *gin.Context) {
	list, err := h.records.ListRecords(c.Request.Context(), c.Query("targetId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	data, err := services.ExportRecordsXLSX(list, h.checklist)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.attachment(c, "evaluation_records", "xlsx", xlsxContentType, data)
}
