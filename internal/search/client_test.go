package search_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rechtsbron/internal/knowledge"
	"rechtsbron/internal/search"
	"rechtsbron/internal/search/mocks"
)

func TestCategoryClient_Search(t *testing.T) {
	ctx := context.Background()
	booster := search.NewBooster(knowledge.Default())

	t.Run("boosts query, tags and cleans results", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		backend.EXPECT().
			Search(gomock.Any(), search.Request{
				Query:    "rijden onder invloed site:wetten.overheid.nl",
				Category: search.CategoryWetten,
				Limit:    5,
			}).
			Return([]search.SearchResult{
				{Title: "  Wegenverkeerswet 1994 ", Link: " https://wetten.overheid.nl/BWBR0006622 ", Snippet: " Artikel 8 "},
				{Title: "zonder link"},
				{Link: "https://example.com/blog", SourceName: "Blog"},
			}, nil)

		client := search.NewCategoryClient(search.CategoryWetten, backend, booster)
		got, err := client.Search(ctx, "rijden onder invloed", 5)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, search.SearchResult{
			Title:      "Wegenverkeerswet 1994",
			Link:       "https://wetten.overheid.nl/BWBR0006622",
			Snippet:    "Artikel 8",
			SourceName: "Wetten.overheid.nl",
			Category:   search.CategoryWetten,
		}, got[0])
		assert.Equal(t, "https://example.com/blog", got[1].Title, "title falls back to link")
		assert.Equal(t, "Blog", got[1].SourceName, "backend label is kept")
	})

	t.Run("truncates to limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		backend.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]search.SearchResult{
			{Link: "https://om.nl/1"}, {Link: "https://om.nl/2"}, {Link: "https://om.nl/3"},
		}, nil)

		client := search.NewCategoryClient(search.CategoryBoetes, backend, nil)
		got, err := client.Search(ctx, "boete", 2)

		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("default limit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		backend.EXPECT().
			Search(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req search.Request) ([]search.SearchResult, error) {
				assert.Equal(t, search.DefaultLimit, req.Limit)
				return nil, nil
			})

		client := search.NewCategoryClient(search.CategoryAlgemeen, backend, nil)
		got, err := client.Search(ctx, "ontslag", 0)

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("errors fail soft with a typed error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		backend.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]search.SearchResult{{Link: "https://x"}}, errors.New("connection refused"))

		client := search.NewCategoryClient(search.CategoryRechtspraak, backend, booster)
		got, err := client.Search(ctx, "ECLI:NL:HR:2019:1234", 10)

		require.Error(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got, "partial results are discarded on error")
		assert.Equal(t, search.ErrorTransient, search.KindOf(err))

		var se *search.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, search.CategoryRechtspraak, se.Category)
	})

	t.Run("backend error kind is preserved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		backend.EXPECT().Search(gomock.Any(), gomock.Any()).
			Return(nil, search.NewError(search.ErrorBadData, "", "decode response", nil))

		client := search.NewCategoryClient(search.CategoryTuchtrecht, backend, nil)
		_, err := client.Search(ctx, "tuchtcollege", 10)

		var se *search.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, search.ErrorBadData, se.Kind)
		assert.Equal(t, search.CategoryTuchtrecht, se.Category)
	})

	t.Run("missing backend is a configuration error", func(t *testing.T) {
		client := search.NewCategoryClient(search.CategoryWetten, nil, nil)
		got, err := client.Search(ctx, "avg", 10)

		assert.Empty(t, got)
		assert.Equal(t, search.ErrorConfiguration, search.KindOf(err))
		assert.ErrorIs(t, err, search.ErrNotConfigured)
	})

	t.Run("empty query skips the backend", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)

		client := search.NewCategoryClient(search.CategoryWetten, backend, booster)
		got, err := client.Search(ctx, "  ", 10)

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("custom classifier", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		backend := mocks.NewMockBackend(ctrl)
		classifier := mocks.NewMockClassifier(ctrl)
		backend.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]search.SearchResult{{Link: "https://intranet.local/a"}}, nil)
		classifier.EXPECT().Classify("https://intranet.local/a").Return("Intranet")

		client := search.NewCategoryClient(search.CategoryAlgemeen, backend, nil, search.WithClassifier(classifier))
		got, err := client.Search(ctx, "beleid", 10)

		require.NoError(t, err)
		assert.Equal(t, "Intranet", got[0].SourceName)
	})
}
