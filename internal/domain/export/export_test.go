package export_test

import (
	"bytes"
	"encoding/csv"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"growthgame/internal/domain/export"
	"growthgame/internal/domain/referral"
)

// TestWriteCSVQuotesEveryField pins the exact byte format.
func TestWriteCSVQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	rows := []export.Row{{ID: "r1", LeadName: `Ana "Aninha"`, LeadPhone: "11999999999", Status: "new", LeadPoints: "0", IsClient: "false"}}
	if err := export.WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], `"id","lead_name","lead_phone"`) {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"r1","Ana ""Aninha""","11999999999","new"`) {
		t.Errorf("row = %s", lines[1])
	}
	if strings.Contains(buf.String(), "\r") {
		t.Error("output must not contain CR")
	}
}

// TestCSVRoundTrip checks every referral field survives commas, quotes,
// newlines and tag ids containing separators.
func TestCSVRoundTrip(t *testing.T) {
	refs := []referral.Referral{
		{
			ID: "r1", LeadName: "Silva, João", LeadPhone: "(11) 99999-9999", Status: referral.StatusConverted,
			ReferrerID: "barber-1", ReferrerName: `Carlos "Navalha"`, ConvertedPlanID: "gold_corte", LeadPoints: 80,
			ContactTag: referral.ContactTagHot, Tags: []string{"vip;retorno", `a,"b"`},
			FollowUpDate: "2026-10-20", FollowUpNote: "ligar à tarde", IsClient: true,
			ClientSince: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
			Notes:       "linha 1\nlinha 2",
			CreatedAt:   time.Date(2026, 9, 30, 8, 0, 0, 123456789, time.UTC),
			UpdatedAt:   time.Date(2026, 10, 2, 9, 30, 0, 0, time.UTC),
		},
		{
			ID: "r2", LeadName: "Ana", LeadPhone: "11999999999", Status: referral.StatusNew,
			ReferrerID: "barber-1", ReferredByLeadID: "r1", Tags: []string{"vip", "retorno"},
		},
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.FromReferrals(refs)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if len(records) != len(refs)+1 {
		t.Fatalf("records = %d, want %d", len(records), len(refs)+1)
	}
	if !slices.Equal(records[0], export.Header) {
		t.Errorf("header = %v", records[0])
	}

	for i, want := range refs {
		got, err := export.ParseRecord(records[i+1])
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if got.ID != want.ID || got.LeadName != want.LeadName || got.LeadPhone != want.LeadPhone ||
			got.Status != want.Status || got.ReferrerID != want.ReferrerID || got.ReferrerName != want.ReferrerName ||
			got.ReferredByLeadID != want.ReferredByLeadID || got.ConvertedPlanID != want.ConvertedPlanID ||
			got.LeadPoints != want.LeadPoints || got.ContactTag != want.ContactTag ||
			got.FollowUpDate != want.FollowUpDate || got.FollowUpNote != want.FollowUpNote ||
			got.IsClient != want.IsClient || got.Notes != want.Notes {
			t.Errorf("row %d = %+v, want %+v", i, got, want)
		}
		if !slices.Equal(got.Tags, want.Tags) {
			t.Errorf("row %d tags = %q, want %q", i, got.Tags, want.Tags)
		}
		if !got.ClientSince.Equal(want.ClientSince) || !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Errorf("row %d times = %v %v %v", i, got.ClientSince, got.CreatedAt, got.UpdatedAt)
		}
	}
}

func TestFromReferral_DistinctTagSetsStayDistinct(t *testing.T) {
	joined := export.FromReferral(referral.Referral{ID: "r1", Tags: []string{"vip;retorno"}})
	split := export.FromReferral(referral.Referral{ID: "r1", Tags: []string{"vip", "retorno"}})
	if joined.Tags == split.Tags {
		t.Errorf("both tag sets export as %q", joined.Tags)
	}
	if empty := export.FromReferral(referral.Referral{ID: "r2"}); empty.Tags != "[]" {
		t.Errorf("no tags = %q, want []", empty.Tags)
	}
}

func TestParseRecord_Rejects(t *testing.T) {
	if _, err := export.ParseRecord([]string{"r1"}); !errors.Is(err, export.ErrFieldCount) {
		t.Errorf("short record: err = %v, want ErrFieldCount", err)
	}
	fields := export.FromReferral(referral.Referral{ID: "r1"}).Fields()
	fields[8] = "muitos"
	if _, err := export.ParseRecord(fields); err == nil {
		t.Error("non-numeric lead_points should fail")
	}
}
