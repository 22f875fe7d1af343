package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// LexiconClassifier scores text in-process against a weighted commodity-news lexicon
type LexiconClassifier struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
}

var _ Classifier = (*LexiconClassifier)(nil)

func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{
		positiveWords: map[string]float64{
			"surge": 1.0, "surged": 1.0, "soar": 1.0, "soared": 1.0, "skyrocket": 1.0,
			"spike": 0.95, "spiked": 0.95, "rally": 0.95, "rallies": 0.95, "bullish": 0.95,
			"jump": 0.85, "jumped": 0.85, "jumps": 0.85, "boost": 0.8, "boosted": 0.8,
			"gain": 0.8, "gains": 0.8, "gained": 0.8, "climb": 0.75, "climbed": 0.75,
			"climbs": 0.75, "rising": 0.75, "rebound": 0.7, "rebounded": 0.7, "recover": 0.7,
			"rise": 0.65, "rises": 0.65, "rose": 0.65, "higher": 0.65, "increase": 0.65,
			"increased": 0.65, "up": 0.5, "strong": 0.6, "tight": 0.55, "tighten": 0.55,
			"hausse": 0.7, "grimpe": 0.75, "bondit": 0.85, "progresse": 0.6,
		},
		negativeWords: map[string]float64{
			"crash": 1.0, "crashed": 1.0, "plunge": 1.0, "plunged": 1.0, "collapse": 1.0,
			"plummet": 0.95, "plummeted": 0.95, "tumble": 0.95, "tumbled": 0.95,
			"slump": 0.8, "slumped": 0.8, "sink": 0.8, "sank": 0.8, "dive": 0.8, "dives": 0.8,
			"drop": 0.75, "dropped": 0.75, "drops": 0.75, "fall": 0.75, "falls": 0.75,
			"fell": 0.75, "falling": 0.75, "bearish": 0.85, "glut": 0.8, "oversupply": 0.8,
			"worries": 0.7, "concerns": 0.7, "weak": 0.7, "slip": 0.55, "slips": 0.55,
			"slipped": 0.55, "lower": 0.6, "decrease": 0.65, "decreased": 0.65, "down": 0.5,
			"baisse": 0.7, "recule": 0.6, "chute": 0.85, "plonge": 0.95,
		},
	}
}

// Classify averages the weights of matched words; compound keeps the sign of the average
func (c *LexiconClassifier) Classify(_ context.Context, text string) (models.SentimentScores, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return models.SentimentScores{Neutral: 1}, nil
	}

	var score float64
	var matches, pos, neg int
	for _, word := range words {
		word = strings.Trim(word, ".,!?\"'()[]{}:;«»")
		if val, ok := c.positiveWords[word]; ok {
			score += val
			matches++
			pos++
		} else if val, ok := c.negativeWords[word]; ok {
			score -= val
			matches++
			neg++
		}
	}
	if matches > 0 {
		score /= float64(matches)
	}

	total := float64(len(words))
	return models.SentimentScores{
		Compound: math.Max(-1, math.Min(1, score)),
		Positive: float64(pos) / total,
		Negative: float64(neg) / total,
		Neutral:  float64(len(words)-pos-neg) / total,
	}, nil
}
