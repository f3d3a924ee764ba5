package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		MaxURLLength:   2048,
		MaxTitleLength: 255,
		MinWidth:       200,
		MaxWidth:       3000,
		MinHeight:      200,
		MaxHeight:      2000,
		MaxQuickTabs:   100,
	}
}

func TestIsValidAcceptsWellFormedState(t *testing.T) {
	now := time.Now()
	s := Add(Empty(2), sampleQuickTab("qt-1", 7), now)
	assert.True(t, IsValid(s, testLimits()))
}

func TestIsValidRejectsDuplicateID(t *testing.T) {
	s := Empty(2)
	s.AllQuickTabs = []QuickTab{sampleQuickTab("qt-1", 7), sampleQuickTab("qt-1", 9)}
	assert.False(t, IsValid(s, testLimits()))
}

func TestIsValidRejectsOversizedPool(t *testing.T) {
	s := Empty(2)
	for i := 0; i < 101; i++ {
		s.AllQuickTabs = append(s.AllQuickTabs, sampleQuickTab("qt-x", 7))
	}
	diag := ValidateWithDiagnostics(s, testLimits(), 2)
	assert.False(t, diag.Valid)
	require.NotEmpty(t, diag.Warnings)
}

func TestIsValidRejectsURLTooLong(t *testing.T) {
	qt := sampleQuickTab("qt-1", 7)
	qt.URL = "https://" + string(make([]byte, 2049))
	s := Empty(2)
	s.AllQuickTabs = []QuickTab{qt}
	assert.False(t, IsValid(s, testLimits()))
}

func TestIsValidRejectsSizeOutOfBounds(t *testing.T) {
	qt := sampleQuickTab("qt-1", 7)
	qt.Size = Size{W: 100, H: 100}
	s := Empty(2)
	s.AllQuickTabs = []QuickTab{qt}
	assert.False(t, IsValid(s, testLimits()))
}

func TestIsValidAcceptsZeroOriginTabID(t *testing.T) {
	qt := sampleQuickTab("qt-1", 0)
	s := Empty(2)
	s.AllQuickTabs = []QuickTab{qt}
	assert.True(t, IsValid(s, testLimits()), "origin tab id 0 is within I4's >= 0 bound")
}

func TestIsValidRejectsNegativeOriginTabID(t *testing.T) {
	qt := sampleQuickTab("qt-1", -1)
	s := Empty(2)
	s.AllQuickTabs = []QuickTab{qt}
	assert.False(t, IsValid(s, testLimits()))
}

func TestValidateWithDiagnosticsNeedsMigration(t *testing.T) {
	s := Empty(1)
	diag := ValidateWithDiagnostics(s, testLimits(), 2)
	assert.True(t, diag.NeedsMigration)
	assert.True(t, diag.Valid)
}
