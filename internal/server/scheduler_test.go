package server

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Now()
	recent := now.Add(-5 * time.Minute)
	overHour := now.Add(-90 * time.Minute)
	overDay := now.Add(-25 * time.Hour)

	cases := []struct {
		name string
		spec string
		last *time.Time
		want bool
	}{
		{"daily never fired", "@daily", nil, true},
		{"daily fired recently", "@daily", &recent, false},
		{"daily fired yesterday", "@daily", &overDay, true},
		{"hourly never fired", "@hourly", nil, true},
		{"hourly fired recently", "@hourly", &recent, false},
		{"hourly fired 90m ago", "@hourly", &overHour, true},
		{"cron never fired", "* * * * *", nil, true},
		{"cron every minute due", "* * * * *", &recent, true},
		{"cron yearly just fired", "0 0 1 1 *", &now, false},
		{"invalid spec falls back to daily", "not a cron spec", &recent, false},
		{"invalid spec never fired", "not a cron spec", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDue(tc.spec, tc.last); got != tc.want {
				t.Fatalf("isDue(%q, %v) = %v, want %v", tc.spec, tc.last, got, tc.want)
			}
		})
	}
}

func TestEnvPublishCredentials(t *testing.T) {
	t.Setenv("PHANTOMBUSTER_API_KEY", "")
	t.Setenv("LINKEDIN_SESSION_COOKIE", "")
	t.Setenv("LINKEDIN_USER_AGENT", "")

	if _, ok := envPublishCredentials(); ok {
		t.Fatalf("expected missing credentials")
	}

	t.Setenv("PHANTOMBUSTER_API_KEY", "pb-key")
	if _, ok := envPublishCredentials(); ok {
		t.Fatalf("api key alone should not be enough")
	}

	t.Setenv("LINKEDIN_SESSION_COOKIE", "li_at=abc")
	creds, ok := envPublishCredentials()
	if !ok {
		t.Fatalf("expected credentials")
	}
	if creds.APIKey != "pb-key" || creds.SessionCookie != "li_at=abc" {
		t.Fatalf("creds = %+v", creds)
	}
}
