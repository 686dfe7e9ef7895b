package pipeline

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/models"
)

// Cue shaping for generated captions.
const (
	maxCueWords = 8
	maxCueGapMs = 1500
)

// buildVTT renders a WebVTT caption file from word timings. Words are
// grouped into cues, broken on silence gaps or cue length. Without word
// timings the whole text becomes a single cue.
func buildVTT(t *models.Transcription) []byte {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	if len(t.Words) == 0 {
		if t.Text != "" {
			b.WriteString("00:00:00.000 --> 00:00:10.000\n")
			b.WriteString(t.Text)
			b.WriteString("\n")
		}
		return []byte(b.String())
	}

	var cue []models.WordTiming
	flush := func() {
		if len(cue) == 0 {
			return
		}
		tokens := make([]string, len(cue))
		for i, w := range cue {
			tokens[i] = w.Token
		}
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			vttTimestamp(cue[0].StartMs),
			vttTimestamp(cue[len(cue)-1].EndMs),
			strings.Join(tokens, " "))
		cue = cue[:0]
	}

	for _, w := range t.Words {
		if len(cue) > 0 {
			gap := w.StartMs - cue[len(cue)-1].EndMs
			if len(cue) >= maxCueWords || gap > maxCueGapMs {
				flush()
			}
		}
		cue = append(cue, w)
	}
	flush()
	return []byte(b.String())
}

func vttTimestamp(ms int64) string {
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
