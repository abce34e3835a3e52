// Copyright 2025 James Ross
package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSRTTimestampParsesHoursMinutesSecondsMillis(t *testing.T) {
	ms, err := parseSRTTimestamp("00:01:02,500")
	require.NoError(t, err)
	assert.Equal(t, int64(62500), ms)
}

func TestParseSRTTimestampRejectsGarbage(t *testing.T) {
	_, err := parseSRTTimestamp("not-a-timestamp")
	assert.Error(t, err)
}

func TestCountSRTEntriesCountsBlankLineSeparatedBlocks(t *testing.T) {
	content := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n" +
		"2\n00:00:01,000 --> 00:00:02,000\nWorld\n"
	assert.Equal(t, 2, countSRTEntries(content))
}

func TestCountSRTEntriesIgnoresTrailingWhitespace(t *testing.T) {
	assert.Equal(t, 0, countSRTEntries("   \n\n  \n"))
}

func TestParseSRTSplitsEntriesAndTrimsText(t *testing.T) {
	content := "1\n00:00:00,000 --> 00:00:01,500\nLine one\nLine two\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\nAnother cue\n"

	entries, err := parseSRT(content)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, int64(0), entries[0].StartMS)
	assert.Equal(t, int64(1500), entries[0].EndMS)
	assert.Equal(t, "Line one\nLine two", entries[0].Text)

	assert.Equal(t, "Another cue", entries[1].Text)
}

func TestParseSRTSkipsBlocksMissingTimingMarker(t *testing.T) {
	content := "1\nnot a timing line\nsome text\n"
	entries, err := parseSRT(content)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCjkWeightedLenCountsWideRunesAsTwo(t *testing.T) {
	assert.Equal(t, 2, cjkWeightedLen("ab"))
	assert.Equal(t, 4, cjkWeightedLen("你好"))
	assert.Equal(t, 5, cjkWeightedLen("a你好"))
}

func TestMsToDurationConverts(t *testing.T) {
	assert.Equal(t, 1500000000, int(msToDuration(1500)))
}
