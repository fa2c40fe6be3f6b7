package storage

import "time"

// Ledger tracks bytes used per owner. One record exists per owner, created
// lazily on the first write.
//
// The ledger trusts its caller: SetUsed stores whatever value it is given.
// Keeping usage non-negative is the File Registry's job, which clamps at
// zero before writing.
type Ledger struct {
	ids     *Allocator
	records map[int64]QuotaRecord // owner -> record
}

func newLedger(ids *Allocator) *Ledger {
	return &Ledger{ids: ids, records: make(map[int64]QuotaRecord)}
}

// Get returns the owner's record.
func (l *Ledger) Get(ownerID int64) (QuotaRecord, bool) {
	rec, ok := l.records[ownerID]
	return rec, ok
}

// SetUsed upserts the owner's record with usedBytes.
func (l *Ledger) SetUsed(ownerID, usedBytes int64, now time.Time) QuotaRecord {
	rec, ok := l.records[ownerID]
	if !ok {
		rec = QuotaRecord{ID: l.ids.Next(KindQuota), OwnerID: ownerID}
	}
	rec.UsedBytes = usedBytes
	rec.LastUpdated = now
	l.records[ownerID] = rec
	return rec
}

// Used returns the owner's recorded usage, or 0 without a record.
func (l *Ledger) Used(ownerID int64) int64 {
	return l.records[ownerID].UsedBytes
}

// PercentUsed returns used as a percentage of limit. A non-positive limit
// yields 0 instead of dividing by zero.
func PercentUsed(used, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
