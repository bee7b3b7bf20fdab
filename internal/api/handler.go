package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-data-explorer/internal/aggregator"
	"github.com/kurihiro0119/github-data-explorer/internal/dashboard"
	"github.com/kurihiro0119/github-data-explorer/internal/domain"
	apperrors "github.com/kurihiro0119/github-data-explorer/internal/errors"
)

// Handler exposes the explorer controller to a browser grid widget
type Handler struct {
	controller *dashboard.Controller
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(controller *dashboard.Controller, agg aggregator.Aggregator) *Handler {
	return &Handler{
		controller: controller,
		aggregator: agg,
	}
}

type collectionRequest struct {
	Name string `json:"name" binding:"required"`
}

type facetRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value"`
}

type dateRangeRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type pageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

type cellClickedRequest struct {
	Row   int    `json:"row"`
	Field string `json:"field" binding:"required"`
}

type rowDragEndRequest struct {
	From int `json:"from"`
	Over int `json:"over"`
}

type exportRequest struct {
	Format string `json:"format"`
}

// GetState returns the current explorer view
// GET /api/v1/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": h.controller.Snapshot(),
	})
}

// RefreshCollections reloads the collection list and opens the first one
// POST /api/v1/collections/refresh
func (h *Handler) RefreshCollections(c *gin.Context) {
	h.respond(c, h.controller.Init(c.Request.Context()))
}

// SelectCollection opens a collection
// POST /api/v1/collection
func (h *Handler) SelectCollection(c *gin.Context) {
	var req collectionRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.SelectCollection(c.Request.Context(), req.Name))
}

// SetFacet applies a facet filter
// POST /api/v1/filters/facet
func (h *Handler) SetFacet(c *gin.Context) {
	var req facetRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.SetFacet(c.Request.Context(), req.Name, req.Value))
}

// ClearFacet drops a facet filter
// DELETE /api/v1/filters/facet/:name
func (h *Handler) ClearFacet(c *gin.Context) {
	h.respond(c, h.controller.ClearFacet(c.Request.Context(), c.Param("name")))
}

// SetDateRange applies the date filter; missing bounds are open
// POST /api/v1/filters/date-range
func (h *Handler) SetDateRange(c *gin.Context) {
	var req dateRangeRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.SetDateRange(c.Request.Context(), req.Start, req.End))
}

// SetPage changes the page size and/or jumps to a page
// POST /api/v1/page
func (h *Handler) SetPage(c *gin.Context) {
	var req pageRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if req.PageSize != 0 {
		if err := h.controller.SetPageSize(ctx, req.PageSize); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.Page != 0 {
		if err := h.controller.GoToPage(ctx, req.Page); err != nil {
			respondError(c, err)
			return
		}
	}
	h.respond(c, nil)
}

// NextPage moves to the next page
// POST /api/v1/page/next
func (h *Handler) NextPage(c *gin.Context) {
	h.respond(c, h.controller.NextPage(c.Request.Context()))
}

// PrevPage moves to the previous page
// POST /api/v1/page/prev
func (h *Handler) PrevPage(c *gin.Context) {
	h.respond(c, h.controller.PrevPage(c.Request.Context()))
}

// Search runs a keyword search across all collections
// POST /api/v1/search
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.Search(c.Request.Context(), req.Keyword))
}

// CellClicked forwards a cell click from the grid widget
// POST /api/v1/grid/cell-clicked
func (h *Handler) CellClicked(c *gin.Context) {
	var req cellClickedRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.ClickCell(c.Request.Context(), req.Row, req.Field))
}

// RowDragEnd forwards a finished row drag from the grid widget
// POST /api/v1/grid/row-drag-end
func (h *Handler) RowDragEnd(c *gin.Context) {
	var req rowDragEndRequest
	if !bind(c, &req) {
		return
	}
	h.respond(c, h.controller.DragRow(req.From, req.Over))
}

// GetRowDetail returns the pretty JSON of one bound row
// GET /api/v1/rows/:index/detail
func (h *Handler) GetRowDetail(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, apperrors.NewBadRequestError("row index must be an integer"))
		return
	}

	detail, err := h.controller.RowDetail(index)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"index":  index,
			"detail": detail,
		},
	})
}

// Export downloads the current collection with the active filters
// POST /api/v1/export
func (h *Handler) Export(c *gin.Context) {
	var req exportRequest
	if !bind(c, &req) {
		return
	}
	format, err := domain.ParseExportFormat(req.Format)
	if err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return
	}

	data, exported, err := h.controller.Export(c.Request.Context(), format)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := exported.CollectionName + format.Extension()
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType(format), data)
}

// GetUserStats sums the cached per-user stats of every tracked repository
// GET /api/v1/stats
func (h *Handler) GetUserStats(c *gin.Context) {
	summary, err := h.aggregator.AggregateCached(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// HealthCheck returns the health status of the bridge
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// respond answers with the resulting view, or the error
func (h *Handler) respond(c *gin.Context, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	h.GetState(c)
}

// bind decodes an optional JSON body. An empty body leaves req zeroed.
func bind(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	// chunked requests carry no length, so an empty body shows up as EOF
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return false
	}
	return true
}

func contentType(format domain.ExportFormat) string {
	switch format {
	case domain.ExportJSON:
		return "application/json"
	case domain.ExportExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// statusOf maps an error code to the HTTP status of the bridge response
func statusOf(code apperrors.ErrCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case apperrors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeNetworkFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	if code == "" {
		// surface failures carry only the recorded message
		code = apperrors.ErrCodeNetworkFailure
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	c.JSON(statusOf(code), gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
