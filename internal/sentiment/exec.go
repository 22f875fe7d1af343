package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/brentwatch/brent-news-bot/internal/models"
)

// ExecClassifier runs an external program once per text. The text is passed as
// the last argument and the program must print {"compound","pos","neg","neu"} as JSON.
type ExecClassifier struct {
	Command string
	Args    []string
	Timeout time.Duration
	Env     []string // appended to the inherited environment when set
}

var _ Classifier = (*ExecClassifier)(nil)

// NewExecClassifier runs `command script <text>`, e.g. python3 ./scripts/vader_sentiment.py
func NewExecClassifier(command, script string, timeout time.Duration) *ExecClassifier {
	var args []string
	if script != "" {
		args = []string{script}
	}
	return &ExecClassifier{Command: command, Args: args, Timeout: timeout}
}

type classifierOutput struct {
	Compound *float64 `json:"compound"`
	Pos      float64  `json:"pos"`
	Neg      float64  `json:"neg"`
	Neu      float64  `json:"neu"`
}

func (c *ExecClassifier) Classify(ctx context.Context, text string) (models.SentimentScores, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, c.Args...), text)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := "classifier process failed"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				reason += " (" + truncate(msg, 200) + ")"
			}
		}
		return models.SentimentScores{}, &ScoringError{Text: text, Reason: reason, Err: err}
	}

	return decodeScores(text, stdout.Bytes())
}

// decodeScores reads the last non-empty output line so libraries printing warnings first do not break parsing
func decodeScores(text string, out []byte) (models.SentimentScores, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return models.SentimentScores{}, &ScoringError{Text: text, Reason: "classifier produced no output"}
	}

	var parsed classifierOutput
	if err := json.Unmarshal([]byte(last), &parsed); err != nil {
		return models.SentimentScores{}, &ScoringError{Text: text, Reason: "classifier output is not JSON", Err: err}
	}
	if parsed.Compound == nil {
		return models.SentimentScores{}, &ScoringError{Text: text, Reason: "classifier output has no compound score"}
	}
	if *parsed.Compound < -1 || *parsed.Compound > 1 {
		return models.SentimentScores{}, &ScoringError{Text: text, Reason: "compound score out of [-1, 1]"}
	}

	return models.SentimentScores{
		Compound: *parsed.Compound,
		Positive: parsed.Pos,
		Negative: parsed.Neg,
		Neutral:  parsed.Neu,
	}, nil
}
