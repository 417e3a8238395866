package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInstitutionalEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "panther@pitt.edu", true},
		{"Valid email uppercase", "PANTHER@PITT.EDU", true},
		{"Valid email with dots", "roc.the.panther@pitt.edu", true},
		{"Valid email with plus", "panther+mc@pitt.edu", true},
		{"Valid email surrounded by spaces", "  panther@pitt.edu ", true},
		{"Invalid - other domain", "user@gmail.com", false},
		{"Invalid - subdomain spoof", "panther@pitt.edu.evil.com", false},
		{"Invalid - suffix without at", "panther@notpitt.edu", false},
		{"Invalid - no local part", "@pitt.edu", false},
		{"Invalid - empty", "", false},
		{"Invalid - display name", "Roc <panther@pitt.edu>", false},
		{"Invalid - no at", "pitt.edu", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsInstitutionalEmail(tt.email, "pitt.edu"))
		})
	}
}

func TestIsInstitutionalEmailDomainCase(t *testing.T) {
	assert.True(t, IsInstitutionalEmail("panther@pitt.edu", "PITT.EDU"))
	assert.True(t, IsInstitutionalEmail("panther@pitt.edu", "@pitt.edu"))
	assert.False(t, IsInstitutionalEmail("panther@pitt.edu", ""))
}

func TestIsCodeFormat(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected bool
	}{
		{"Six digits", "123456", true},
		{"Leading zeros", "000123", true},
		{"Five digits", "12345", false},
		{"Seven digits", "1234567", false},
		{"Letters", "12a456", false},
		{"Unicode digits", "١٢٣٤٥٦", false},
		{"Empty", "", false},
		{"Spaces", " 123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCodeFormat(tt.code))
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		edition  Edition
		username string
		strict   bool
		expected error
	}{
		{"Java minimum length", EditionJava, "abc", false, nil},
		{"Java too short", EditionJava, "ab", false, ErrInvalidJavaUsername},
		{"Java mixed", EditionJava, "PittPanther_123", false, nil},
		{"Java invalid characters", EditionJava, "Pitt Panther!", false, ErrInvalidJavaUsername},
		{"Java maximum length", EditionJava, "abcdefghijklmnop", false, nil},
		{"Java too long", EditionJava, "abcdefghijklmnopq", false, ErrInvalidJavaUsername},
		{"Bedrock single character", EditionBedrock, "A", false, nil},
		{"Bedrock any charset", EditionBedrock, "Pitt Panther!", false, nil},
		{"Bedrock empty", EditionBedrock, "", false, ErrInvalidBedrockUsername},
		{"Bedrock too long", EditionBedrock, "abcdefghijklmnopq", false, ErrInvalidBedrockUsername},
		{"Bedrock strict single character", EditionBedrock, "A", true, ErrInvalidBedrockUsername},
		{"Bedrock strict with space", EditionBedrock, "Pitt Panther", true, nil},
		{"Bedrock strict punctuation", EditionBedrock, "Pitt-Panther.1", true, nil},
		{"Bedrock strict invalid characters", EditionBedrock, "Pitt Panther!", true, ErrInvalidBedrockUsername},
		{"Unknown edition", Edition("pocket"), "abc", false, ErrInvalidEdition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.edition, tt.username, tt.strict)
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestParseEditionAndDevice(t *testing.T) {
	e, err := ParseEdition(" Java ")
	require.NoError(t, err)
	assert.Equal(t, EditionJava, e)

	_, err = ParseEdition("pocket")
	assert.ErrorIs(t, err, ErrInvalidEdition)

	d, err := ParseDevice("MAC")
	require.NoError(t, err)
	assert.Equal(t, DeviceMac, d)

	_, err = ParseDevice("fridge")
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestUpstreamUsername(t *testing.T) {
	assert.Equal(t, "Pitt_Panther_1", UpstreamUsername(EditionBedrock, "Pitt Panther 1"))
	assert.Equal(t, "Pitt Panther", UpstreamUsername(EditionJava, "Pitt Panther"))
}

func TestStoreKeys(t *testing.T) {
	assert.Equal(t, "Panther@pitt.edu", CodeKey("Panther@pitt.edu"))
	assert.Equal(t, "awaiting:panther@pitt.edu", AwaitingKey(" PANTHER@PITT.EDU"))
	assert.Equal(t, "verified:abc", VerifiedKey("abc"))
	assert.Equal(t, "webhook:abc", ProgressKey("abc"))

	at := time.UnixMilli(1700000000123)
	rec := AuditRecord{Email: "panther@pitt.edu", Timestamp: at}
	assert.Equal(t, "whitelist:panther@pitt.edu:1700000000123", rec.Key())
}

func TestWhitelistStepNumber(t *testing.T) {
	assert.Equal(t, 1, StepStarted.Number())
	assert.Equal(t, 3, StepDeviceSelected.Number())
	assert.Equal(t, StepCount, StepCompleted.Number())
	assert.Equal(t, 0, WhitelistStep("bogus").Number())
	assert.Equal(t, "Email Verified", StepVerified.Title())
}

func TestUpstreamRejectionError(t *testing.T) {
	err := &UpstreamRejection{Status: "error", Message: "player not found"}
	assert.Contains(t, err.Error(), "player not found")
	assert.Contains(t, (&UpstreamRejection{Status: "error"}).Error(), `"error"`)
}
