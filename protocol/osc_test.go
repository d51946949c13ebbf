package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerSplitsOutputAndFrames(t *testing.T) {
	var s Scanner
	segs := s.Feed([]byte("PS> gi\x1b]633;Completions;0;0;2;[]\x07rest"))

	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Kind: SegmentOutput, Data: []byte("PS> gi")}, segs[0])
	assert.Equal(t, SegmentSequence, segs[1].Kind)
	assert.Equal(t, "Completions;0;0;2;[]", string(segs[1].Data))
	assert.Equal(t, Segment{Kind: SegmentOutput, Data: []byte("rest")}, segs[2])
	assert.Zero(t, s.Pending())
}

func TestScannerStringTerminator(t *testing.T) {
	var s Scanner
	segs := s.Feed([]byte("\x1b]633;A\x1b\\"))
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentSequence, segs[0].Kind)
	assert.Equal(t, "A", string(segs[0].Data))
}

func TestScannerFrameSplitAcrossFeeds(t *testing.T) {
	var s Scanner
	frame := "\x1b]633;CompletionsPwshCommands;commands;[[\"gci\",2]]\x07"

	var got []Segment
	for i := 0; i < len(frame); i += 5 {
		end := i + 5
		if end > len(frame) {
			end = len(frame)
		}
		got = append(got, s.Feed([]byte(frame[i:end]))...)
	}

	require.Len(t, got, 1)
	assert.Equal(t, SegmentSequence, got[0].Kind)
	assert.Equal(t, `CompletionsPwshCommands;commands;[["gci",2]]`, string(got[0].Data))
	assert.Zero(t, s.Pending())
}

func TestScannerLoneEscapeHeld(t *testing.T) {
	var s Scanner
	segs := s.Feed([]byte("abc\x1b"))
	require.Len(t, segs, 1)
	assert.Equal(t, "abc", string(segs[0].Data))
	assert.Equal(t, 1, s.Pending())

	segs = s.Feed([]byte("[31mred"))
	require.Len(t, segs, 1)
	assert.Equal(t, "\x1b[31mred", string(segs[0].Data))
}

func TestScannerBell(t *testing.T) {
	var s Scanner
	segs := s.Feed([]byte("no match\x07"))
	require.Len(t, segs, 2)
	assert.Equal(t, SegmentOutput, segs[0].Kind)
	assert.Equal(t, Segment{Kind: SegmentBell}, segs[1])
}

func TestScannerOtherOSCPassesThrough(t *testing.T) {
	var s Scanner
	title := "\x1b]0;window title\x07"
	segs := s.Feed([]byte(title + "x"))
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentOutput, segs[0].Kind)
	assert.Equal(t, title+"x", string(segs[0].Data))
}

func TestScannerFlush(t *testing.T) {
	var s Scanner
	segs := s.Feed([]byte("\x1b]633;Completions;0;0"))
	assert.Empty(t, segs)
	assert.Positive(t, s.Pending())

	flushed := s.Flush()
	require.Len(t, flushed, 1)
	assert.Equal(t, "\x1b]633;Completions;0;0", string(flushed[0].Data))
	assert.Zero(t, s.Pending())
	assert.Nil(t, s.Flush())
}

func TestTriggerBytes(t *testing.T) {
	assert.Equal(t, []byte{0x1b, '[', '2', '4', '~', 'e'}, TriggerContextual.Bytes())
	assert.Equal(t, "global", TriggerGlobal.String())
	assert.Equal(t, "git", TriggerGit.String())
	assert.Equal(t, "code", TriggerCode.String())
}

func TestEncodeSequenceRoundTrip(t *testing.T) {
	frame := EncodeSequence([]byte("E;git status"))
	assert.Equal(t, "\x1b]633;E;git status\x07", string(frame))

	var s Scanner
	segs := s.Feed(frame)
	require.Len(t, segs, 1)
	assert.Equal(t, SegmentSequence, segs[0].Kind)
	assert.Equal(t, "E;git status", string(segs[0].Data))
}
