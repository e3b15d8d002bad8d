package indexer

import (
	"context"
	"time"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
)

// Stats summarizes one index build pass.
type Stats struct {
	Started      time.Time
	Duration     time.Duration
	Pages        int
	PagesSkipped int
	Chunks       int
	Embedded     int
}

// Log writes a build summary at info level.
func (s *Stats) Log(ctx context.Context) {
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "index build completed",
		"pages", s.Pages,
		"pages_skipped", s.PagesSkipped,
		"chunks", s.Chunks,
		"embedded", s.Embedded,
		"duration", s.Duration.Round(time.Millisecond).String(),
	)
}
