package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rechtsbron/internal/search"
	"rechtsbron/pkg/platform/sentinel"
)

const sample = `[
  {"title": "Burgerlijk Wetboek Boek 7 artikel 457", "link": "https://wetten.overheid.nl/BWBR0005290/Boek7/Artikel457", "snippet": "Geheimhouding door de hulpverlener bij de geneeskundige behandelingsovereenkomst.", "category": "wetten", "keywords": ["beroepsgeheim", "ziekenhuis", "wgbo"]},
  {"title": "Wetboek van Strafvordering artikel 126nf", "link": "https://wetten.overheid.nl/BWBR0001903/Artikel126nf", "snippet": "Vordering van gevoelige gegevens door de officier van justitie.", "category": "wetten", "keywords": ["vorderen", "politie", "gegevens"]},
  {"title": "Uitspraak beroepsgeheim arts", "link": "https://uitspraken.rechtspraak.nl/details?id=ECLI:NL:HR:2019:1234", "snippet": "De Hoge Raad oordeelt over het verschoningsrecht van een arts.", "category": "rechtspraak", "keywords": ["beroepsgeheim", "verschoningsrecht"]},
  {"title": "APV Nijmegen", "link": "https://lokaleregelgeving.overheid.nl/CVDR1", "snippet": "Algemene plaatselijke verordening van de gemeente Nijmegen.", "keywords": ["apv", "nijmegen"]}
]`

func loadSample(t *testing.T) *Index {
	t.Helper()
	idx, err := Parse([]byte(sample))
	require.NoError(t, err)
	return idx
}

func TestSearch_ScoresAndFiltersByCategory(t *testing.T) {
	idx := loadSample(t)

	got, err := idx.Search(context.Background(), search.Request{
		Query:    "beroepsgeheim ziekenhuis",
		Category: search.CategoryWetten,
		Limit:    10,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "https://wetten.overheid.nl/BWBR0005290/Boek7/Artikel457", got[0].Link)
}

func TestSearch_GeneralCategorySearchesEverything(t *testing.T) {
	idx := loadSample(t)

	got, err := idx.Search(context.Background(), search.Request{
		Query:    "beroepsgeheim",
		Category: search.CategoryAlgemeen,
		Limit:    10,
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	// Title hit on the case law entry outranks the keyword-only hit.
	assert.Equal(t, "Uitspraak beroepsgeheim arts", got[0].Title)
	assert.Equal(t, "Burgerlijk Wetboek Boek 7 artikel 457", got[1].Title)
}

func TestSearch_SiteFilterAndPhrase(t *testing.T) {
	idx := loadSample(t)

	got, err := idx.Search(context.Background(), search.Request{
		Query:    `"APV Nijmegen" gemeente site:lokaleregelgeving.overheid.nl`,
		Category: search.CategoryAlgemeen,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "APV Nijmegen", got[0].Title)

	got, err = idx.Search(context.Background(), search.Request{
		Query:    "beroepsgeheim site:rechtspraak.nl",
		Category: search.CategoryAlgemeen,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Uitspraak beroepsgeheim arts", got[0].Title)
}

func TestSearch_LimitAndNoMatch(t *testing.T) {
	idx := loadSample(t)

	got, err := idx.Search(context.Background(), search.Request{Query: "wetboek", Category: search.CategoryWetten, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = idx.Search(context.Background(), search.Request{Query: "de het een", Category: search.CategoryAlgemeen})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = idx.Search(context.Background(), search.Request{Query: "huurcommissie", Category: search.CategoryAlgemeen})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_CancelledContext(t *testing.T) {
	idx := loadSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, search.Request{Query: "apv", Category: search.CategoryAlgemeen})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{name: "missing title", entries: []Entry{{Link: "https://wetten.overheid.nl"}}},
		{name: "relative link", entries: []Entry{{Title: "x", Link: "/BWBR1"}}},
		{name: "unknown category", entries: []Entry{{Title: "x", Link: "https://om.nl", Category: "blogs"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			assert.ErrorIs(t, err, sentinel.ErrInvalidPayload)
		})
	}

	idx, err := New([]Entry{{Title: "x", Link: "https://om.nl"}})
	require.NoError(t, err)
	assert.Equal(t, search.CategoryAlgemeen, idx.docs[0].Category)
}

func TestDefault(t *testing.T) {
	idx := Default()
	require.NotNil(t, idx)
	assert.Same(t, idx, Default(), "embedded index is parsed once")
	assert.Equal(t, 16, idx.Len())

	res, err := idx.Search(context.Background(), search.Request{
		Query:    "rijden onder invloed",
		Category: search.CategoryWetten,
		Limit:    5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	for _, r := range res {
		assert.Equal(t, search.CategoryWetten, r.Category)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	idx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = Parse([]byte("{"))
	assert.Error(t, err)
}
