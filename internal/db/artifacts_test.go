package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArtifactStatusConstants(t *testing.T) {
	assert.Equal(t, "proposed", ArtifactStatusProposed)
	assert.Equal(t, "approved", ArtifactStatusApproved)
	assert.Equal(t, "rejected", ArtifactStatusRejected)
	assert.Equal(t, "superseded", ArtifactStatusSuperseded)
}

func TestArtifactAgentAndKindConstants(t *testing.T) {
	assert.Equal(t, "distiller", AgentDistiller)
	assert.Equal(t, "research", AgentResearch)
	assert.Equal(t, "web-scout", AgentWebScout)

	kinds := []string{KindConcept, KindFlashcard, KindResearchReport, KindWebProposal}
	for _, kind := range kinds {
		assert.NotEmpty(t, kind)
	}
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2025, 7, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2025-07-04", DayKey(ts))

	// Day keys are UTC regardless of the input zone.
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "2025-07-05", DayKey(time.Date(2025, 7, 4, 22, 0, 0, 0, est)))
}

func TestValidConceptType(t *testing.T) {
	for _, ct := range []string{"definition", "principle", "framework", "procedure", "fact"} {
		assert.True(t, ValidConceptType(ct), ct)
	}
	assert.False(t, ValidConceptType("opinion"))
	assert.False(t, ValidConceptType(""))
}

func TestValidFlashcardFormat(t *testing.T) {
	assert.True(t, ValidFlashcardFormat("qa"))
	assert.True(t, ValidFlashcardFormat("cloze"))
	assert.False(t, ValidFlashcardFormat("essay"))
}
