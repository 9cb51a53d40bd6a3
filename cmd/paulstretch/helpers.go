package main

import (
	"log/slog"

	"github.com/tphakala/go-audio-stretch/internal/audioio"
)

// countingSource counts the samples read from a source and reports
// progress as they pass through.
type countingSource struct {
	audioio.Source
	samples  int64
	progress *progressTracker
	tap      *analysisTap
}

func newCountingSource(src audioio.Source, progress *progressTracker) *countingSource {
	return &countingSource{Source: src, progress: progress}
}

// ReadSamples reads from the wrapped source.
func (c *countingSource) ReadSamples(dst [][]float64) (int, error) {
	n, err := c.Source.ReadSamples(dst)
	if n > 0 {
		c.samples += int64(n)
		c.progress.reportIfNeeded(c.samples)
		if c.tap != nil {
			views := make([][]float64, len(dst))
			for ch := range dst {
				views[ch] = dst[ch][:n]
			}
			c.tap.add(views)
		}
	}
	return n, err
}

// progressTracker handles progress reporting.
type progressTracker struct {
	totalSamples int64
	lastProgress int
	logger       *slog.Logger
}

// newProgressTracker creates a new progress tracker. Progress is logged
// at debug level.
func newProgressTracker(totalSamples int64, logger *slog.Logger) *progressTracker {
	return &progressTracker{
		totalSamples: totalSamples,
		logger:       logger,
	}
}

// reportIfNeeded reports progress if threshold crossed.
func (p *progressTracker) reportIfNeeded(currentSamples int64) {
	if p.logger == nil || p.totalSamples == 0 {
		return
	}

	progress := int(float64(currentSamples) / float64(p.totalSamples) * percentScale)
	progress = min(progress, percentScale)
	if progress >= p.lastProgress+progressInterval {
		p.logger.Debug("progress", "percent", progress)
		p.lastProgress = progress
	}
}

// analysisTap keeps the first limit samples of channel 0.
type analysisTap struct {
	samples []float64
	limit   int
}

func newAnalysisTap(limit int) *analysisTap {
	return &analysisTap{limit: limit}
}

// add appends from block[0] until the tap is full. A nil tap ignores
// everything.
func (a *analysisTap) add(block [][]float64) {
	if a == nil || len(block) == 0 {
		return
	}
	room := a.limit - len(a.samples)
	if room <= 0 {
		return
	}
	a.samples = append(a.samples, block[0][:min(room, len(block[0]))]...)
}
