package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"partsbot/internal"
)

func TestCollectKeepsBufferedOutcomesAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Repeated because select picks randomly between ready cases.
	for range 50 {
		ch := make(chan outcome, 3)
		ch <- outcome{index: 0, result: internal.SourceResult{Source: "catalog_vin", Completed: true}}
		ch <- outcome{index: 2, result: internal.SourceResult{Source: "partsouq", Completed: true}}
		results := make([]internal.SourceResult, 3)
		settled := make([]bool, 3)

		collect(ctx, ch, results, settled, zerolog.Nop())

		assert.Equal(t, []bool{true, false, true}, settled)
		assert.Equal(t, "catalog_vin", results[0].Source)
		assert.True(t, results[2].Completed)
	}
}

func TestCollectStopsWhenChannelCloses(t *testing.T) {
	ch := make(chan outcome, 2)
	ch <- outcome{index: 1, result: internal.SourceResult{Source: "autodoc", Completed: true}}
	close(ch)
	results := make([]internal.SourceResult, 2)
	settled := make([]bool, 2)

	collect(context.Background(), ch, results, settled, zerolog.Nop())

	assert.Equal(t, []bool{false, true}, settled)
}
