package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tipgate/tipgate/internal/classify"
	"github.com/tipgate/tipgate/internal/engine"
	"github.com/tipgate/tipgate/internal/prediction"
	"github.com/tipgate/tipgate/internal/store"
)

func newService(t *testing.T, opts Options) (*Service, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.Options{Store: store.NewMemory()})
	require.NoError(t, err)
	opts.Engine = eng
	svc, err := New(opts)
	require.NoError(t, err)
	return svc, eng
}

func seed(t *testing.T, eng *engine.Engine, matchID int64, category string, confidence int) {
	t.Helper()
	_, err := eng.Upsert(context.Background(), classify.RawPrediction{
		MatchID:    matchID,
		Sport:      "football",
		Category:   category,
		Tip:        fmt.Sprintf("tip for %d", matchID),
		Confidence: confidence,
		HomeTeam:   &prediction.Team{ID: 1, Name: "Arsenal"},
		AwayTeam:   &prediction.Team{ID: 2, Name: "Everton"},
		League:     &prediction.League{ID: 10, Name: "Premier League"},
		Fixture:    prediction.Fixture{Date: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
}

func TestListPaginatesAfterGating(t *testing.T) {
	svc, eng := newService(t, Options{DefaultPageSize: 10, MaxPageSize: 50})
	ctx := context.Background()

	// 25 public records plus interleaved vip records an anonymous viewer
	// must never see, on any page, at any boundary.
	for i := int64(1); i <= 25; i++ {
		seed(t, eng, i, "banker", 100-int(i))
		seed(t, eng, 1000+i, "vip", 99-int(i))
	}

	var collected []int64
	for page := 1; page <= 3; page++ {
		result, err := svc.List(ctx, ListRequest{Tier: prediction.TierAnonymous, Page: page, PageSize: 10})
		require.NoError(t, err)
		require.Equal(t, 25, result.TotalCount)
		require.Equal(t, page, result.Page)
		require.Equal(t, 10, result.PageSize)
		for _, item := range result.Items {
			require.NotEqual(t, "vip", item.Category)
			collected = append(collected, item.MatchID)
		}
	}
	require.Len(t, collected, 25)

	// Confidence was seeded as 100-i so match 1 is strongest.
	want := make([]int64, 0, 25)
	for i := int64(1); i <= 25; i++ {
		want = append(want, i)
	}
	require.Equal(t, want, collected)

	// A page beyond the end is empty, not an error.
	beyond, err := svc.List(ctx, ListRequest{Tier: prediction.TierAnonymous, Page: 4, PageSize: 10})
	require.NoError(t, err)
	require.Empty(t, beyond.Items)
	require.Equal(t, 25, beyond.TotalCount)
}

func TestListVIPTierSeesEverything(t *testing.T) {
	svc, eng := newService(t, Options{})
	seed(t, eng, 1, "banker", 90)
	seed(t, eng, 2, "vip", 80)
	seed(t, eng, 3, "surprise", 70)

	result, err := svc.List(context.Background(), ListRequest{Tier: prediction.TierVIP})
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Items, 3)
}

func TestListPageSizeClamping(t *testing.T) {
	svc, eng := newService(t, Options{DefaultPageSize: 5, MaxPageSize: 8})
	for i := int64(1); i <= 12; i++ {
		seed(t, eng, i, "banker", 50)
	}
	ctx := context.Background()

	// Omitted page size falls back to the default.
	result, err := svc.List(ctx, ListRequest{Tier: prediction.TierAnonymous})
	require.NoError(t, err)
	require.Equal(t, 5, result.PageSize)
	require.Len(t, result.Items, 5)
	require.Equal(t, 1, result.Page)

	// Oversized requests clamp to the maximum.
	result, err = svc.List(ctx, ListRequest{Tier: prediction.TierAnonymous, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 8, result.PageSize)
	require.Len(t, result.Items, 8)

	// Page zero and negatives normalize to the first page.
	result, err = svc.List(ctx, ListRequest{Tier: prediction.TierAnonymous, Page: -3, PageSize: 5})
	require.NoError(t, err)
	require.Equal(t, 1, result.Page)
}

func TestListCategoryFilter(t *testing.T) {
	svc, eng := newService(t, Options{})
	seed(t, eng, 1, "banker", 90)
	seed(t, eng, 2, "surprise", 80)

	result, err := svc.List(context.Background(), ListRequest{
		Category: prediction.CategorySurprise,
		Tier:     prediction.TierAnonymous,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	require.Equal(t, int64(2), result.Items[0].MatchID)
}

func TestDetailDistinguishesMissingFromDenied(t *testing.T) {
	svc, eng := newService(t, Options{})
	ctx := context.Background()
	seed(t, eng, 7, "vip", 85)

	_, err := svc.Detail(ctx, 404, prediction.TierVIP)
	require.ErrorIs(t, err, prediction.ErrNotFound)

	_, err = svc.Detail(ctx, 7, prediction.TierAuthenticated)
	require.ErrorIs(t, err, prediction.ErrDenied)

	view, err := svc.Detail(ctx, 7, prediction.TierVIP)
	require.NoError(t, err)
	require.Equal(t, int64(7), view.MatchID)
	require.Equal(t, "vip", view.Category)
}

func TestShapeAppliesDisplayFallbacks(t *testing.T) {
	rank := 3
	view := shape(prediction.Prediction{
		MatchID:    11,
		Sport:      prediction.SportFootball,
		Category:   prediction.CategoryBanker,
		Tip:        "Over 2.5",
		Confidence: 77,
		HomeTeam:   prediction.Team{ID: 1, Name: "Arsenal", Rank: &rank},
		AwayTeam:   prediction.Team{ID: 2, Name: "Everton"},
		League:     prediction.League{ID: 10, Name: "Premier League"},
		Fixture:    prediction.Fixture{Date: time.Date(2026, 9, 5, 18, 30, 0, 0, time.UTC)},
	})

	require.Equal(t, "2026-09-05", view.KickoffDate)
	require.Equal(t, "TBD", view.KickoffTime, "missing kickoff time must render the fallback")
	require.NotNil(t, view.HomeTeam.Rank)
	require.Equal(t, 3, *view.HomeTeam.Rank)
	require.Nil(t, view.AwayTeam.Rank)
}
