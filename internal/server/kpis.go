package server

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	obsmetrics "github.com/smallbiznis/kpireport/internal/observability/metrics"
	"github.com/smallbiznis/kpireport/internal/output"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	"go.uber.org/zap"
)

// GetCohort analyses the subscriptions created between start and end.
func (s *Server) GetCohort(c *gin.Context) {
	start, err := parseRequiredDate(s.times, "start", c.Query("start"))
	if err != nil {
		s.metrics.IncCohortRequests(obsmetrics.CohortOutcomeInvalid)
		AbortWithError(c, err)
		return
	}
	end, err := parseRequiredDate(s.times, "end", c.Query("end"))
	if err != nil {
		s.metrics.IncCohortRequests(obsmetrics.CohortOutcomeInvalid)
		AbortWithError(c, err)
		return
	}

	rows, err := s.loadRows()
	if err != nil {
		s.metrics.IncCohortRequests(obsmetrics.CohortOutcomeError)
		AbortWithError(c, err)
		return
	}

	agg := s.aggregator.WithCohortConfig(s.report.Get().Cohort)
	result, err := agg.Cohort(rows, kpidomain.CohortRequest{
		Start: start,
		End:   end,
		Now:   s.clock.Now(),
	})
	if err != nil {
		s.metrics.IncCohortRequests(obsmetrics.CohortOutcomeInvalid)
		AbortWithError(c, err)
		return
	}

	s.metrics.IncCohortRequests(obsmetrics.CohortOutcomeOK)
	c.JSON(http.StatusOK, result)
}

// GetGlobalKPIs summarizes the whole subscription report.
func (s *Server) GetGlobalKPIs(c *gin.Context) {
	rows, err := s.loadRows()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.aggregator.Global(rows))
}

func (s *Server) loadRows() ([]reportdomain.Row, error) {
	path := filepath.Join(s.cfg.OutDir, output.SubscriptionsFile)
	rows, err := output.ReadSubscriptions(path, s.times)
	if err != nil {
		s.log.Warn("subscription report unavailable", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return rows, nil
}
