package api

import (
	"net/http"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/service/statement"
	"github.com/gin-gonic/gin"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

type StatementHandler struct {
	service statement.StatementUseCase
	now     func() time.Time
}

func NewStatementHandler(service statement.StatementUseCase) *StatementHandler {
	return &StatementHandler{service: service, now: time.Now}
}

func (h *StatementHandler) Register(router *gin.RouterGroup) {
	router.GET("", RequireRole(domain.RoleWorker), h.get)
}

// get defaults to the current calendar month.
func (h *StatementHandler) get(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	today := h.now().In(domain.Location)
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, domain.Location)
	to := today
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.ParseInLocation(time.DateOnly, raw, domain.Location); err != nil {
			respondError(c, http.StatusBadRequest, "validation_error", "from: expected YYYY-MM-DD", nil)
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.ParseInLocation(time.DateOnly, raw, domain.Location); err != nil {
			respondError(c, http.StatusBadRequest, "validation_error", "to: expected YYYY-MM-DD", nil)
			return
		}
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "xlsx" && format != "pdf" {
		respondError(c, http.StatusBadRequest, "validation_error", "format: must be json, xlsx or pdf", nil)
		return
	}

	st, err := h.service.Build(c.Request.Context(), actor.ID, from, to)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	switch format {
	case "json":
		c.JSON(http.StatusOK, st)
	case "xlsx":
		data, err := st.XLSX()
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		attachment(c, st.Filename("xlsx"), xlsxContentType, data)
	case "pdf":
		data, err := st.PDF()
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		attachment(c, st.Filename("pdf"), pdfContentType, data)
	}
}

func attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
