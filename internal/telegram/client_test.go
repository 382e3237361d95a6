package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/munimap/anomaly-engine/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"Old-Town (north)", "Old\\-Town \\(north\\)"},
		{"12.5% | z=3", "12\\.5% \\| z\\=3"},
		{"a_b*c[d]", "a\\_b\\*c\\[d\\]"},
	}

	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDigest(t *testing.T) {
	detected := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC).UnixMilli()
	anomalies := []models.Anomaly{
		{
			Title:    "Spike in garbage reports",
			Category: "garbage",
			Area:     "Old Town",
			Severity: models.SeverityHigh,
			Metrics: models.SpikeMetrics{
				CurrentReports: 12,
				BaselineMean:   4.8,
				Threshold:      10,
			},
			RelatedReports: []string{"r1", "r2", "r3"},
			FirstDetected:  detected,
		},
		{
			Title:    "Slow resolutions for lighting",
			Category: "lighting",
			Area:     "Harbor",
			Severity: models.SeverityMedium,
			Metrics: models.SlowResponseMetrics{
				CurrentAvgDays: 12,
				Threshold:      10.5,
			},
			RelatedReports: []string{"r4"},
			FirstDetected:  detected,
		},
	}

	got := formatDigest(anomalies)

	for _, frag := range []string{
		"🚨",
		"🔴",
		"🟠",
		"Old Town",
		"*12*",                 // spike current count, bold
		"baseline 4\\.8",       // escaped decimal point
		"threshold 10",         // %.0f rendering
		"*12\\.0 days*",        // slow resolution average
		"expected 10\\.5",      // slow resolution threshold
		"Related reports: 3",
		"Related reports: 1",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("digest missing %q:\n%s", frag, got)
		}
	}

	if !strings.HasPrefix(got, "🚨 *New anomalies detected*") {
		t.Errorf("digest must open with the header, got: %.60s", got)
	}
	if strings.Index(got, "1\\.") > strings.Index(got, "2\\.") {
		t.Error("anomalies must be numbered in input order")
	}
}

func TestNewClient_RejectsBadChatID(t *testing.T) {
	// Bot construction fails first on an unreachable token, so validate the
	// chat id parsing directly.
	if _, err := parseChatID("not-a-number"); err == nil {
		t.Error("expected an error for a non-numeric chat id")
	}
	id, err := parseChatID("-1001234567890")
	if err != nil {
		t.Fatalf("valid chat id rejected: %v", err)
	}
	if id != -1001234567890 {
		t.Errorf("chat id = %d", id)
	}
}
