package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyWaiverWirePrecedence(t *testing.T) {
	t.Parallel()

	res := Classify(Input{Title: "Week 5 Waiver Wire Targets"})
	require.Equal(t, TopicWaiverWire, res.PrimaryTopic)
	require.Contains(t, res.Topics, TopicWaiverWire)
	require.False(t, res.IsPlayerPage)
}

func TestClassifyDefaultsToNews(t *testing.T) {
	t.Parallel()

	res := Classify(Input{Title: "Quarterback carousel keeps spinning in the NFC"})
	require.Equal(t, TopicNews, res.PrimaryTopic)
	require.Equal(t, []Topic{TopicNews}, res.Topics)
}

func TestClassifyPrimaryAndSecondary(t *testing.T) {
	t.Parallel()

	res := Classify(Input{Title: "Start 'Em Sit 'Em: Week 8 rankings for every position"})
	require.Equal(t, TopicStartSit, res.PrimaryTopic)
	require.Equal(t, TopicRankings, res.SecondaryTopic)
}

func TestClassifyWaiverBlacklistDemotion(t *testing.T) {
	t.Parallel()

	// A single waiver mention drowned in trade/injury language should not
	// classify as waiver-wire.
	res := Classify(Input{
		Title:   "Trade deadline fallout: injured stars, trade grades, and one waiver note",
		Snippet: "Trades dominated the week. Another trade. More injury updates after the trade.",
	})
	require.NotEqual(t, TopicWaiverWire, res.PrimaryTopic)
	require.NotContains(t, res.Topics, TopicWaiverWire)
}

func TestClassifyPublisherPriorTipsDemotion(t *testing.T) {
	t.Parallel()

	title := "Waiver wire pickups after trade rumors, trade grades, and a trade recap"

	without := Classify(Input{Title: title})
	with := Classify(Input{Title: title, Publisher: "rotoballer.com"})

	// Two whitelist hits against three blacklist hits: demoted without a
	// prior, kept with one.
	require.NotContains(t, without.Topics, TopicWaiverWire)
	require.Contains(t, with.Topics, TopicWaiverWire)
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	in := Input{Title: "Week 12 DFS values and rankings", URL: "https://example.com/dfs/week-12"}
	first := Classify(in)
	for range 10 {
		require.Equal(t, first, Classify(in))
	}
}

func TestPlayerPageFromBareName(t *testing.T) {
	t.Parallel()

	res := Classify(Input{Title: "Christian McCaffrey"})
	require.True(t, res.IsPlayerPage)
	require.Equal(t, []string{"Christian McCaffrey"}, res.Players)

	res = Classify(Input{Title: "Amon-Ra St. Brown"})
	require.True(t, res.IsPlayerPage)

	res = Classify(Input{Title: "Week 5 Rankings"})
	require.False(t, res.IsPlayerPage)

	res = Classify(Input{Title: "Justin"})
	require.False(t, res.IsPlayerPage)
}

func TestPlayerPageFromGlyphAndSlug(t *testing.T) {
	t.Parallel()

	res := Classify(Input{
		Title: "» Christian McCaffrey",
		URL:   "https://example.com/players/christian-mccaffrey",
	})
	require.True(t, res.IsPlayerPage)
	require.Equal(t, "Christian McCaffrey", res.DisplayTitle)
	require.Equal(t, []string{"Christian McCaffrey"}, res.Players)
}

func TestPlayerPageSlugSkipsGenericAndNumericSegments(t *testing.T) {
	t.Parallel()

	res := Classify(Input{
		Title: "» latest update",
		URL:   "https://example.com/nfl/jordan-love/news/12345",
	})
	require.True(t, res.IsPlayerPage)
	require.Equal(t, "Jordan Love", res.DisplayTitle)
}

func TestPlayerPageGlyphWithoutSlugIsNotPlayerPage(t *testing.T) {
	t.Parallel()

	res := Classify(Input{
		Title: "» Week 5 waiver wire adds",
		URL:   "https://example.com/articles/week-5-waiver-wire-adds",
	})
	require.False(t, res.IsPlayerPage)
}

func TestStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"waiver-wire", "news"}, Strings([]Topic{TopicWaiverWire, TopicNews}))
}
