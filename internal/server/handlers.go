package server

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/query"
	"github.com/bold-kg/termdex/internal/search"
	"github.com/bold-kg/termdex/pkg/version"
)

// searchParams is the query string of GET /search/:dataset.
type searchParams struct {
	Q        string `form:"q"`
	Limit    *int   `form:"limit" binding:"omitempty,min=0"`
	Offset   int    `form:"offset" binding:"min=0"`
	Pos      string `form:"pos"`
	URL      string `form:"url"`
	MinCount string `form:"min_count"`
	MaxCount string `form:"max_count"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"version":      version.Short(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"open_indexes": s.cache.Len(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.queryLog.Snapshot())
}

func (s *Server) handleSearch(c *gin.Context) {
	dataset := c.Param("dataset")

	req, err := s.parseRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	idx, release, err := s.cache.Acquire(dataset)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	searcher := search.New(idx,
		search.WithAggPageSize(s.cfg.AggPageSize),
		search.WithMetrics(s.metrics),
		search.WithQueryLog(s.queryLog, dataset))

	res, err := searcher.Search(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) parseRequest(c *gin.Context) (search.Request, error) {
	var p searchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		return search.Request{}, errors.New(errors.ErrCodeInvalidInput,
			"invalid search parameters", err)
	}

	filters, err := query.ParseFilters(query.FilterParams{
		Pos:      p.Pos,
		URL:      p.URL,
		MinCount: p.MinCount,
		MaxCount: p.MaxCount,
	})
	if err != nil {
		return search.Request{}, err
	}

	limit := s.cfg.DefaultLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	return search.Request{
		Query:   p.Q,
		Limit:   &limit,
		Offset:  p.Offset,
		Filters: filters,
	}, nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeError(c *gin.Context, err error) {
	body := errorBody{Code: errors.GetCode(err), Message: err.Error()}
	var e *errors.Error
	if stderrors.As(err, &e) {
		body.Message = e.Message
		body.Suggestion = e.Suggestion
	} else {
		body.Code = errors.ErrCodeInternal
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(errors.HTTPStatus(err), gin.H{"error": body})
}
