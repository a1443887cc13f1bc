package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"growthgame/internal/adapters/spreadsheet"
	"growthgame/internal/application/listutil"
	"growthgame/internal/application/orchestrators"
	"growthgame/internal/application/projections"
	"growthgame/internal/domain/export"
)

// exportRows loads the referrals matching the list filters on the query
// string, ignoring pagination.
func exportRows(r *http.Request, p orchestrators.Principal) ([]export.Row, error) {
	return projections.QueryGetExportRows(r.Context(), projections.GetExportRowsQuery{
		OrganizationID: p.OrganizationID,
		Filters:        listutil.ParseFilterParams(r.URL.Query(), projections.ReferralListFilterKeys),
	}, projections.GetExportRowsDeps{Referrals: stores.Referrals})
}

func setAttachment(w http.ResponseWriter, contentType, format string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="indicacoes-%s.%s"`, timeNow().Format("2006-01-02"), format))
}

// handleExportCSV handles GET /api/export/referrals.csv.
func handleExportCSV(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	rows, err := exportRows(r, p)
	if err != nil {
		internalError(w, err)
		return
	}
	setAttachment(w, "text/csv; charset=utf-8", export.FormatCSV)
	if err := export.WriteCSV(w, rows); err != nil {
		// Headers are gone; all that is left is to log.
		logExportFailure(export.FormatCSV, err)
	}
}

// handleExportXLSX handles GET /api/export/referrals.xlsx.
func handleExportXLSX(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	rows, err := exportRows(r, p)
	if err != nil {
		internalError(w, err)
		return
	}
	setAttachment(w, spreadsheet.ContentType, export.FormatXLSX)
	if err := spreadsheet.WriteXLSX(w, rows); err != nil {
		logExportFailure(export.FormatXLSX, err)
	}
}

// handleExportJSON handles GET /api/export/referrals.json.
func handleExportJSON(w http.ResponseWriter, r *http.Request, p orchestrators.Principal) {
	rows, err := exportRows(r, p)
	if err != nil {
		internalError(w, err)
		return
	}
	body, err := export.ToJSON(rows)
	if err != nil {
		internalError(w, err)
		return
	}
	setAttachment(w, "application/json", export.FormatJSON)
	w.Write(body)
}

func logExportFailure(format string, err error) {
	slog.Error("export_event", "event", "write_failed", "format", format, "error", err.Error())
}
