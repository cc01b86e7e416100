package recording

import (
	"github.com/emusim/torii/emu"
)

// syncPointTable is the table every fired sync point lands in.
const syncPointTable = "sync_points"

// A SyncPointEntry is one fired sync point.
type SyncPointEntry struct {
	Time     uint64
	TimeSec  float64
	Owner    string
	Tag      int
	Sequence uint64
}

// A SyncPointTrace is a scheduler hook that records every fired sync point
// into a Recorder. Attach it with scheduler.AcceptHook.
type SyncPointTrace struct {
	recorder Recorder
	count    uint64
}

// NewSyncPointTrace creates the trace and its backing table.
func NewSyncPointTrace(recorder Recorder) *SyncPointTrace {
	t := &SyncPointTrace{recorder: recorder}

	t.recorder.CreateTable(syncPointTable, SyncPointEntry{})

	return t
}

// Func records a sync point as it fires.
func (t *SyncPointTrace) Func(ctx emu.HookCtx) {
	if ctx.Pos != emu.HookPosBeforeFire {
		return
	}

	sp, ok := ctx.Item.(*emu.SyncPoint)
	if !ok {
		return
	}

	t.count++
	t.recorder.InsertData(syncPointTable, SyncPointEntry{
		Time:     uint64(sp.Time),
		TimeSec:  sp.Time.Seconds(),
		Owner:    sp.Owner.SchedName(),
		Tag:      int(sp.Tag),
		Sequence: t.count,
	})
}

// Count returns how many sync points have been recorded.
func (t *SyncPointTrace) Count() uint64 {
	return t.count
}
