// Package classify maps article titles and URLs onto fantasy-football
// topic tags. Classification is pure: no I/O, no side effects, and the
// same inputs always produce the same output.
package classify

import (
	"regexp"
	"strings"
)

// Topic identifies one article category.
type Topic string

// Topics in priority order. The first matching topic in this order wins
// the primary slot.
const (
	TopicStartSit   Topic = "start-sit"
	TopicWaiverWire Topic = "waiver-wire"
	TopicInjury     Topic = "injury"
	TopicDFS        Topic = "dfs"
	TopicRankings   Topic = "rankings"
	TopicAdvice     Topic = "advice"
	TopicNews       Topic = "news"
)

// Priority returns all topics in canonical precedence order.
func Priority() []Topic {
	return []Topic{
		TopicStartSit,
		TopicWaiverWire,
		TopicInjury,
		TopicDFS,
		TopicRankings,
		TopicAdvice,
		TopicNews,
	}
}

// Input is everything the classifier looks at.
type Input struct {
	Title   string
	URL     string
	Snippet string
	// Publisher keys the per-publisher prior table (hostname, lowercased).
	Publisher string
}

// Result is the classifier's verdict.
type Result struct {
	Topics         []Topic
	PrimaryTopic   Topic
	SecondaryTopic Topic
	IsPlayerPage   bool
	// Players holds the detected player name on player pages.
	Players []string
	// DisplayTitle is non-empty when the title was regenerated from a URL
	// slug on a glyph-prefixed player page.
	DisplayTitle string
}

var whitelists = map[Topic]*regexp.Regexp{
	TopicStartSit:   regexp.MustCompile(`(?i)\bstart[\s/'-]*(?:em|sit)|start/sit|\bsit[\s/'-]*em\b|who to start`),
	TopicWaiverWire: regexp.MustCompile(`(?i)waiver[\s-]*wire|\bwaivers?\b|\bpickups?\b|\bstreamers?\b|\bfab\b|\bfaab\b`),
	TopicInjury:     regexp.MustCompile(`(?i)\binjur\w*|\bquestionable\b|\bdoubtful\b|out for (?:the )?(?:season|year|week)|\bconcussion\b|\bhamstring\b|\bacl\b|placed on ir\b`),
	TopicDFS:        regexp.MustCompile(`(?i)\bdfs\b|draftkings|fanduel|daily fantasy|\bgpp\b|cash game`),
	TopicRankings:   regexp.MustCompile(`(?i)\brankings?\b|\btiers?\b|\btop[\s-]\d+\b`),
	TopicAdvice:     regexp.MustCompile(`(?i)\badvice\b|\bsleepers?\b|\bbusts?\b|\bbreakouts?\b|trade targets?|buy low|sell high|\bstash(?:es)?\b`),
	TopicNews:       regexp.MustCompile(`(?i)\bnews\b|\breport\b|\bsigns?\b|\bagrees?\b|\btraded?\b|\breleased?\b`),
}

// A whitelist hit is demoted when the category's blacklist matches more
// often than the whitelist, meaning the text is dominated by unrelated
// language.
var blacklists = map[Topic]*regexp.Regexp{
	TopicWaiverWire: regexp.MustCompile(`(?i)\btrade\w*\b|\binjur\w*|practice report|depth chart`),
	TopicRankings:   regexp.MustCompile(`(?i)power rankings|draft rankings`),
	TopicStartSit:   regexp.MustCompile(`(?i)season[\s-]long|draft strategy`),
}

// Per-publisher priors add a small positive bias toward categories a
// publisher is known to concentrate on. The bias only tips contested
// demotions; it never invents a match.
var publisherPriors = map[string][]Topic{
	"fantasypros.com":  {TopicRankings, TopicStartSit},
	"rotoballer.com":   {TopicWaiverWire, TopicAdvice},
	"rotowire.com":     {TopicInjury},
	"draftsharks.com":  {TopicInjury},
	"dailyfantasyfuel": {TopicDFS},
	"numberfire.com":   {TopicDFS, TopicRankings},
	"footballguys.com": {TopicStartSit, TopicAdvice},
	"fantasyalarm.com": {TopicDFS, TopicWaiverWire},
}

// Classify maps (title, url, snippet) to topic tags, a primary topic, and
// the player-page flag.
func Classify(in Input) Result {
	text := strings.TrimSpace(in.Title + " " + in.Snippet)

	var matched []Topic
	for _, topic := range Priority() {
		if topic == TopicNews {
			continue
		}
		if topicMatches(topic, text, in.Publisher) {
			matched = append(matched, topic)
		}
	}

	result := Result{Topics: matched}
	switch len(matched) {
	case 0:
		result.PrimaryTopic = TopicNews
		result.Topics = []Topic{TopicNews}
	case 1:
		result.PrimaryTopic = matched[0]
	default:
		result.PrimaryTopic = matched[0]
		result.SecondaryTopic = matched[1]
	}

	applyPlayerPage(in, &result)
	return result
}

func topicMatches(topic Topic, text, publisher string) bool {
	white := whitelists[topic].FindAllStringIndex(text, -1)
	if len(white) == 0 {
		return false
	}
	score := len(white)
	if hasPrior(publisher, topic) {
		score++
	}
	if black, ok := blacklists[topic]; ok {
		if hits := black.FindAllStringIndex(text, -1); len(hits) > score {
			return false
		}
	}
	return true
}

func hasPrior(publisher string, topic Topic) bool {
	publisher = strings.ToLower(strings.TrimSpace(publisher))
	if publisher == "" {
		return false
	}
	for key, topics := range publisherPriors {
		if !strings.Contains(publisher, key) {
			continue
		}
		for _, t := range topics {
			if t == topic {
				return true
			}
		}
	}
	return false
}

// Strings converts a topic slice to plain strings for storage.
func Strings(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = string(t)
	}
	return out
}
