package setting_test

import (
	"testing"

	"growthgame/internal/domain/setting"
)

// TestSettingValidation tests validation of Setting.
func TestSettingValidation(t *testing.T) {
	tests := []struct {
		name    string
		setting setting.Setting
		wantErr bool
	}{
		{name: "org key", setting: setting.Setting{ScopeID: "org1", Key: setting.KeyTags, Value: "[]"}},
		{name: "profile key", setting: setting.Setting{ScopeID: "p1", Key: setting.KeyDismissedNotifications, Value: "[]"}},
		{name: "unknown key", setting: setting.Setting{ScopeID: "org1", Key: "view_mode", Value: "[]"}, wantErr: true},
		{name: "no scope", setting: setting.Setting{Key: setting.KeyTags, Value: "[]"}, wantErr: true},
		{name: "no value", setting: setting.Setting{ScopeID: "org1", Key: setting.KeyTags}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.setting.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsOrganizationKey(t *testing.T) {
	if setting.IsOrganizationKey(setting.KeyDismissedNotifications) {
		t.Error("dismissed notifications are per profile")
	}
	if !setting.IsOrganizationKey(setting.KeyPlanOverrides) {
		t.Error("plan overrides are per organization")
	}
}
