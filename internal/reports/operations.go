// Package reports registers the built-in analytics operations over the
// company warehouse. Each handler issues one parameterized statement; column
// and metric identifiers come from fixed allow lists, all values are bound.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/sandbox"
	"github.com/reportrunner/reportrunner/internal/warehouse"
)

const (
	OpCountAnalysis     = "count_analysis"
	OpMultiDimensional  = "multi_dimensional_analytics"
	OpTimeSeries        = "time_series_analysis"
	OpTopCompanies      = "top_companies"
	OpSummaryStatistics = "summary_statistics"
	OpAdhocQuery        = "adhoc_query"
)

var groupByColumns = map[string]bool{
	"industry":     true,
	"region":       true,
	"country":      true,
	"status":       true,
	"founded_year": true,
}

var rankingMetrics = map[string]bool{
	"revenue":        true,
	"employee_count": true,
}

type Operations struct {
	Executor warehouse.Executor
	Clock    func() time.Time
}

func NewOperations(executor warehouse.Executor) *Operations {
	return &Operations{Executor: executor, Clock: func() time.Time { return time.Now().UTC() }}
}

// Register installs every built-in descriptor into the registry.
func (o *Operations) Register(registry *analytics.Registry) error {
	descriptors := []analytics.Descriptor{
		{
			Name:           OpCountAnalysis,
			Description:    "Company counts grouped by a dimension column.",
			Handler:        o.countAnalysis,
			RequiredParams: []string{"group_by"},
		},
		{
			Name:          OpMultiDimensional,
			Description:   "Industry by region aggregates over a timeframe.",
			Handler:       o.multiDimensional,
			DefaultParams: analytics.Params{"timeframe": "12 months"},
		},
		{
			Name:          OpTimeSeries,
			Description:   "Monthly company creation counts over a timeframe.",
			Handler:       o.timeSeries,
			DefaultParams: analytics.Params{"timeframe": "12 months"},
		},
		{
			Name:          OpTopCompanies,
			Description:   "Highest ranked companies by a metric column.",
			Handler:       o.topCompanies,
			DefaultParams: analytics.Params{"metric": "revenue", "limit": 10},
		},
		{
			Name:        OpSummaryStatistics,
			Description: "Warehouse-wide headline statistics.",
			Handler:     o.summaryStatistics,
		},
		{
			Name:           OpAdhocQuery,
			Description:    "Sandboxed read-only SQL supplied by the caller.",
			Handler:        o.adhocQuery,
			RequiredParams: []string{"query"},
		},
	}

	for _, descriptor := range descriptors {
		if err := registry.Register(descriptor); err != nil {
			return err
		}
	}
	return nil
}

func (o *Operations) countAnalysis(ctx context.Context, params analytics.Params) (analytics.RowSet, error) {
	groupBy, err := stringParam(params, "group_by")
	if err != nil {
		return analytics.RowSet{}, err
	}
	if !groupByColumns[groupBy] {
		return analytics.RowSet{}, analytics.NewError(analytics.KindValidation,
			fmt.Sprintf("group_by %q is not a groupable column", groupBy))
	}

	sqlText := fmt.Sprintf(`
SELECT %s AS group_value, COUNT(*) AS company_count
FROM companies
GROUP BY %s
ORDER BY company_count DESC, group_value ASC`, groupBy, groupBy)
	return o.Executor.Execute(ctx, sqlText)
}

func (o *Operations) multiDimensional(ctx context.Context, params analytics.Params) (analytics.RowSet, error) {
	cutoff, err := timeframeParam(params, o.Clock())
	if err != nil {
		return analytics.RowSet{}, err
	}

	sqlText := `
SELECT industry,
       region,
       COUNT(*) AS company_count,
       SUM(revenue) AS total_revenue,
       AVG(employee_count) AS avg_employees
FROM companies
WHERE created_at >= $1
GROUP BY industry, region
ORDER BY total_revenue DESC, industry ASC, region ASC`
	return o.Executor.Execute(ctx, sqlText, cutoff)
}

func (o *Operations) timeSeries(ctx context.Context, params analytics.Params) (analytics.RowSet, error) {
	cutoff, err := timeframeParam(params, o.Clock())
	if err != nil {
		return analytics.RowSet{}, err
	}

	sqlText := `
SELECT date_trunc('month', created_at) AS period,
       COUNT(*) AS company_count,
       SUM(revenue) AS total_revenue
FROM companies
WHERE created_at >= $1
GROUP BY 1
ORDER BY 1 ASC`
	return o.Executor.Execute(ctx, sqlText, cutoff)
}

func (o *Operations) topCompanies(ctx context.Context, params analytics.Params) (analytics.RowSet, error) {
	metric, err := stringParam(params, "metric")
	if err != nil {
		return analytics.RowSet{}, err
	}
	if !rankingMetrics[metric] {
		return analytics.RowSet{}, analytics.NewError(analytics.KindValidation,
			fmt.Sprintf("metric %q is not a rankable column", metric))
	}
	limit, err := intParam(params, "limit")
	if err != nil {
		return analytics.RowSet{}, err
	}
	if limit <= 0 || limit > 10_000 {
		return analytics.RowSet{}, analytics.NewError(analytics.KindValidation, "limit must be between 1 and 10000")
	}

	sqlText := fmt.Sprintf(`
SELECT company_id, name, industry, region, %s AS metric_value
FROM companies
ORDER BY metric_value DESC, company_id ASC
LIMIT $1`, metric)
	return o.Executor.Execute(ctx, sqlText, limit)
}

func (o *Operations) summaryStatistics(ctx context.Context, _ analytics.Params) (analytics.RowSet, error) {
	sqlText := `
SELECT COUNT(*) AS company_count,
       COUNT(DISTINCT industry) AS industry_count,
       COUNT(DISTINCT region) AS region_count,
       SUM(revenue) AS total_revenue,
       AVG(revenue) AS avg_revenue,
       AVG(employee_count) AS avg_employees
FROM companies`
	return o.Executor.Execute(ctx, sqlText)
}

func (o *Operations) adhocQuery(ctx context.Context, params analytics.Params) (analytics.RowSet, error) {
	queryText, err := stringParam(params, "query")
	if err != nil {
		return analytics.RowSet{}, err
	}
	if err := sandbox.Validate(queryText); err != nil {
		return analytics.RowSet{}, analytics.WrapError(analytics.KindForbiddenQuery, "ad-hoc query rejected", err)
	}
	return o.Executor.Execute(ctx, queryText)
}

func timeframeParam(params analytics.Params, now time.Time) (time.Time, error) {
	raw, err := stringParam(params, "timeframe")
	if err != nil {
		return time.Time{}, err
	}
	cutoff, err := parseTimeframe(raw, now)
	if err != nil {
		return time.Time{}, analytics.WrapError(analytics.KindValidation, "invalid timeframe", err)
	}
	return cutoff, nil
}

func stringParam(params analytics.Params, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", analytics.NewError(analytics.KindValidation, fmt.Sprintf("missing required parameter %q", key))
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", analytics.NewError(analytics.KindValidation, fmt.Sprintf("parameter %q must be a non-empty string", key))
	}
	return value, nil
}

// intParam tolerates float64 because parameters arrive via encoding/json.
func intParam(params analytics.Params, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, analytics.NewError(analytics.KindValidation, fmt.Sprintf("missing required parameter %q", key))
	}
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		if value != float64(int(value)) {
			return 0, analytics.NewError(analytics.KindValidation, fmt.Sprintf("parameter %q must be an integer", key))
		}
		return int(value), nil
	default:
		return 0, analytics.NewError(analytics.KindValidation, fmt.Sprintf("parameter %q must be an integer", key))
	}
}
