package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"growthgame/internal/domain/referral"
)

// Format constants for export file format.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Header is the column order of a referral export.
var Header = []string{
	"id",
	"lead_name",
	"lead_phone",
	"status",
	"referrer_id",
	"referrer_name",
	"referred_by_lead_id",
	"converted_plan_id",
	"lead_points",
	"contact_tag",
	"tags",
	"follow_up_date",
	"follow_up_note",
	"is_client",
	"client_since",
	"notes",
	"created_at",
	"updated_at",
}

// ErrFieldCount is returned when a record does not match Header.
var ErrFieldCount = errors.New("export record does not match the header")

// Row is one exported referral, every field already formatted as text.
type Row struct {
	ID               string `json:"id"`
	LeadName         string `json:"lead_name"`
	LeadPhone        string `json:"lead_phone"`
	Status           string `json:"status"`
	ReferrerID       string `json:"referrer_id"`
	ReferrerName     string `json:"referrer_name"`
	ReferredByLeadID string `json:"referred_by_lead_id"`
	ConvertedPlanID  string `json:"converted_plan_id"`
	LeadPoints       string `json:"lead_points"`
	ContactTag       string `json:"contact_tag"`
	Tags             string `json:"tags"` // JSON array of tag ids
	FollowUpDate     string `json:"follow_up_date"`
	FollowUpNote     string `json:"follow_up_note"`
	IsClient         string `json:"is_client"`
	ClientSince      string `json:"client_since"`
	Notes            string `json:"notes"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// Fields returns the row in Header order.
func (r Row) Fields() []string {
	return []string{
		r.ID, r.LeadName, r.LeadPhone, r.Status, r.ReferrerID, r.ReferrerName,
		r.ReferredByLeadID, r.ConvertedPlanID, r.LeadPoints, r.ContactTag,
		r.Tags, r.FollowUpDate, r.FollowUpNote, r.IsClient, r.ClientSince,
		r.Notes, r.CreatedAt, r.UpdatedAt,
	}
}

// FromReferral formats a referral for export. Tags are written as a JSON
// array so ids containing separators survive; timestamps keep nanoseconds.
func FromReferral(ref referral.Referral) Row {
	tags := ref.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, _ := json.Marshal(tags) // []string always encodes
	return Row{
		ID:               ref.ID,
		LeadName:         ref.LeadName,
		LeadPhone:        ref.LeadPhone,
		Status:           ref.Status,
		ReferrerID:       ref.ReferrerID,
		ReferrerName:     ref.ReferrerName,
		ReferredByLeadID: ref.ReferredByLeadID,
		ConvertedPlanID:  ref.ConvertedPlanID,
		LeadPoints:       strconv.Itoa(ref.LeadPoints),
		ContactTag:       ref.ContactTag,
		Tags:             string(encoded),
		FollowUpDate:     ref.FollowUpDate,
		FollowUpNote:     ref.FollowUpNote,
		IsClient:         strconv.FormatBool(ref.IsClient),
		ClientSince:      formatTime(ref.ClientSince),
		Notes:            ref.Notes,
		CreatedAt:        formatTime(ref.CreatedAt),
		UpdatedAt:        formatTime(ref.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ParseRecord reads one exported record, in Header order, back into a
// referral. OrganizationID is not part of an export and stays empty.
// PRE: fields came from WriteCSV or the XLSX sheet, header excluded
// POST: Returns the referral the record was formatted from
func ParseRecord(fields []string) (referral.Referral, error) {
	if len(fields) != len(Header) {
		return referral.Referral{}, fmt.Errorf("%w: %d fields, want %d", ErrFieldCount, len(fields), len(Header))
	}
	ref := referral.Referral{
		ID:               fields[0],
		LeadName:         fields[1],
		LeadPhone:        fields[2],
		Status:           fields[3],
		ReferrerID:       fields[4],
		ReferrerName:     fields[5],
		ReferredByLeadID: fields[6],
		ConvertedPlanID:  fields[7],
		ContactTag:       fields[9],
		FollowUpDate:     fields[11],
		FollowUpNote:     fields[12],
		Notes:            fields[15],
	}
	var err error
	if ref.LeadPoints, err = strconv.Atoi(fields[8]); err != nil {
		return referral.Referral{}, fmt.Errorf("lead_points: %w", err)
	}
	if err := json.Unmarshal([]byte(fields[10]), &ref.Tags); err != nil {
		return referral.Referral{}, fmt.Errorf("tags: %w", err)
	}
	if ref.IsClient, err = strconv.ParseBool(fields[13]); err != nil {
		return referral.Referral{}, fmt.Errorf("is_client: %w", err)
	}
	if ref.ClientSince, err = parseTime(fields[14]); err != nil {
		return referral.Referral{}, fmt.Errorf("client_since: %w", err)
	}
	if ref.CreatedAt, err = parseTime(fields[16]); err != nil {
		return referral.Referral{}, fmt.Errorf("created_at: %w", err)
	}
	if ref.UpdatedAt, err = parseTime(fields[17]); err != nil {
		return referral.Referral{}, fmt.Errorf("updated_at: %w", err)
	}
	return ref, nil
}

// FromReferrals formats a slice of referrals.
func FromReferrals(refs []referral.Referral) []Row {
	rows := make([]Row, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, FromReferral(r))
	}
	return rows
}

// WriteCSV writes the header and rows. Every field is wrapped in double
// quotes with internal quotes doubled; rows end with "\n".
// PRE: w is writable
// POST: Returns the first write error, if any
func WriteCSV(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	writeRecord(bw, Header)
	for _, r := range rows {
		writeRecord(bw, r.Fields())
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// ToJSON serializes rows to indented JSON.
func ToJSON(rows []Row) ([]byte, error) {
	return json.MarshalIndent(rows, "", "  ")
}
