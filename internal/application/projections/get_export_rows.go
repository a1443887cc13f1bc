package projections

import (
	"context"

	"growthgame/internal/application/listutil"
	"growthgame/internal/domain/export"
)

// exportPageSize bounds each store read while collecting an export.
const exportPageSize = 500

// GetExportRowsQuery carries query parameters.
type GetExportRowsQuery struct {
	OrganizationID string
	Filters        listutil.FilterParams
}

// GetExportRowsDeps holds dependencies for GetExportRows.
type GetExportRowsDeps struct {
	Referrals ReferralStore
}

// QueryGetExportRows collects every matching referral formatted for export.
// POST: Rows follow the list order (newest first)
func QueryGetExportRows(ctx context.Context, query GetExportRowsQuery, deps GetExportRowsDeps) ([]export.Row, error) {
	filter := ReferralFilter(query.OrganizationID, query.Filters)
	filter.Limit = exportPageSize

	rows := []export.Row{}
	for {
		page, err := deps.Referrals.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		rows = append(rows, export.FromReferrals(page)...)
		if len(page) < exportPageSize {
			return rows, nil
		}
		filter.Offset += exportPageSize
	}
}
