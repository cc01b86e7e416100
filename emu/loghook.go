package emu

import (
	"log"
)

// SyncPointLogger is a hook that prints every fired sync point.
type SyncPointLogger struct {
	logger *log.Logger
}

// NewSyncPointLogger returns a hook which will write into the logger.
func NewSyncPointLogger(logger *log.Logger) *SyncPointLogger {
	h := new(SyncPointLogger)

	h.logger = logger

	return h
}

// Func writes the sync point information into the logger.
func (h *SyncPointLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeFire {
		return
	}

	sp, ok := ctx.Item.(*SyncPoint)
	if !ok {
		return
	}

	h.logger.Printf("%.9f, %s, tag %d",
		sp.Time.Seconds(), sp.Owner.SchedName(), sp.Tag)
}
