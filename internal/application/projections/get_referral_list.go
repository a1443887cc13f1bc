package projections

import (
	"context"

	referralStore "growthgame/internal/adapters/storage/referral"
	"growthgame/internal/application/listutil"
)

// Filter keys accepted by the referral list.
const (
	FilterStatus     = "status"
	FilterTag        = "tag"
	FilterContactTag = "contact_tag"
	FilterReferrer   = "referrer_id"
)

// ReferralListFilterKeys are the query parameters QueryGetReferralList reads.
var ReferralListFilterKeys = []string{FilterStatus, FilterTag, FilterContactTag, FilterReferrer}

// GetReferralListQuery carries query parameters.
type GetReferralListQuery struct {
	OrganizationID string
	Params         listutil.ListParams
}

// GetReferralListResult carries the query result.
type GetReferralListResult struct {
	Referrals []ReferralView    `json:"referrals"`
	Page      listutil.PageInfo `json:"page"`
}

// GetReferralListDeps holds dependencies for GetReferralList.
type GetReferralListDeps struct {
	Referrals ReferralStore
}

// QueryGetReferralList returns one page of an organization's referrals,
// newest first.
// PRE: query.OrganizationID is non-empty
// POST: Page.Total counts every match; Referrals holds at most PerPage rows
func QueryGetReferralList(ctx context.Context, query GetReferralListQuery, deps GetReferralListDeps) (GetReferralListResult, error) {
	filter := ReferralFilter(query.OrganizationID, query.Params.FilterParams)
	total, err := deps.Referrals.Count(ctx, filter)
	if err != nil {
		return GetReferralListResult{}, err
	}
	page := listutil.NewPageInfo(query.Params.Page, query.Params.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	rows, err := deps.Referrals.List(ctx, filter)
	if err != nil {
		return GetReferralListResult{}, err
	}
	out := make([]ReferralView, 0, len(rows))
	for _, r := range rows {
		out = append(out, NewReferralView(r))
	}
	return GetReferralListResult{Referrals: out, Page: page}, nil
}

// ReferralFilter maps parsed list filters onto a store filter without paging.
func ReferralFilter(organizationID string, fp listutil.FilterParams) referralStore.ListFilter {
	return referralStore.ListFilter{
		OrganizationID: organizationID,
		Status:         fp.Filters[FilterStatus],
		Tag:            fp.Filters[FilterTag],
		ContactTag:     fp.Filters[FilterContactTag],
		ReferrerID:     fp.Filters[FilterReferrer],
		Search:         fp.Search,
	}
}
