package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMedline = `PMID- 12345678
TI  - Aspirin therapy in patients with acute myocardial
      infarction: a randomized trial.
AB  - Background: Aspirin reduces mortality in acute coronary
      syndromes. We evaluated early administration.
AU  - Smith J
AU  - Jones K
JT  - Journal of Cardiology
DP  - 2020 Mar
MH  - Aspirin/*therapeutic use
MH  - Myocardial Infarction/*drug therapy
OT  - antiplatelet therapy

PMID- 87654321
TI  - Echocardiographic findings in heart failure.
JT  - Heart
DP  - 2019
`

func TestParseMedline(t *testing.T) {
	records, err := ParseMedline(strings.NewReader(sampleMedline))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "12345678", first.PMID)
	assert.Equal(t, "Aspirin therapy in patients with acute myocardial infarction: a randomized trial.", first.Title)
	assert.Contains(t, first.Abstract, "We evaluated early administration.")
	assert.Equal(t, []string{"Smith J", "Jones K"}, first.Authors)
	assert.Equal(t, "Journal of Cardiology", first.Journal)
	assert.Equal(t, "2020 Mar", first.PublicationDate)
	assert.Len(t, first.MeshTerms, 2)
	assert.Equal(t, []string{"antiplatelet therapy"}, first.Keywords)

	second := records[1]
	assert.Equal(t, "87654321", second.PMID)
	assert.Equal(t, "Echocardiographic findings in heart failure.", second.Title)
	assert.Empty(t, second.Abstract)
	assert.Empty(t, second.Authors)
}

func TestParseMedlineEmptyInput(t *testing.T) {
	records, err := ParseMedline(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMedlineRecordDocument(t *testing.T) {
	record := MedlineRecord{
		PMID:     "12345678",
		Title:    "Test Article",
		Abstract: "Some abstract.",
	}

	doc := record.Document("Full body text.")
	assert.Equal(t, "12345678", doc.PMID)
	assert.Equal(t, "12345678", doc.SourceID())
	assert.Equal(t, "pubmed", doc.SourceType)
	assert.Equal(t, "Full body text.", doc.FullText)
	assert.Contains(t, doc.ExtractionText(), "Some abstract.")
}
