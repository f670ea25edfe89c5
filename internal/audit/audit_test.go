package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that sensitive metadata keys are redacted before
// audit events reach the log stream.
// Scope: Unit Test
// Security: Data Masking and Leakage Prevention (CWE-532)
// Expected: Keys carrying credentials are flagged; survey-domain keys such as
// idempotency_key or respondent_id pass through unredacted.
// Test Case ID: AUD-01
func TestAudit_IsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"Password", true},
		{"PASSWORD", true},
		{"token", true},
		{"access_token", true},
		{"secret", true},
		{"jwt_secret", true},
		{"credential", true},
		{"authorization", true},
		{"tenant_id", false},
		{"survey_id", false},
		{"respondent_id", false},
		{"idempotency_key", false},
		{"status", false},
		{"format", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.isSecret, isSecret(tt.key), "isSecret(%q)", tt.key)
		})
	}
}
