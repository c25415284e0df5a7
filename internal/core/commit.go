package core

// commit.go pushes staged intents to the sheet.
//
// Order: updates, then deletes from the highest row index down, then appends.
// Each operation is attempted on its own; one failure does not stop the rest,
// and nothing already written is rolled back. Before writing, the sheet is
// fetched once more so every update and delete addresses the row that holds
// its record_id now rather than the index seen at load time. After writing,
// the store reloads and re-stages exactly the operations that failed, so a
// second Commit retries only those.
//
// An adopted row the caller never edited is written as it stands in the sheet
// with only its record_id cell filled in, so cells that could not be parsed on
// load are never overwritten.

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
)

// Commit applies every staged create, update and delete to the sheet.
//
// It returns a *LoadError (and applies nothing) when the sheet cannot be read
// or its header changed since load, a *PartialCommitError when some
// operations failed, or a *LoadError when all writes were attempted but the
// reload failed. The CommitResult lists every attempted operation in all
// cases.
func (s *RecordStore) Commit(ctx context.Context) (CommitResult, error) {
	if !s.loaded {
		return CommitResult{}, ErrNotLoaded
	}

	var updates, deletes, creates []*entry
	staged := make(map[string]stagedUpdate)
	for _, e := range s.entries {
		switch {
		case e.tombstone:
			deletes = append(deletes, e)
		case e.rec.IsPending():
			creates = append(creates, e)
		case e.dirty || e.adopted():
			updates = append(updates, e)
			staged[e.rec.RecordID] = stagedUpdate{idOnly: !e.dirty, issues: maps.Clone(e.issues)}
		}
	}

	var res CommitResult
	if len(updates)+len(deletes)+len(creates) > 0 {
		remote, err := s.fetchRemote(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "commit aborted", "sheet", s.ref.Key(), "error", err)
			return res, err
		}

		for _, e := range updates {
			res.Outcomes = append(res.Outcomes, s.commitUpdate(ctx, e, remote))
		}
		res.Outcomes = append(res.Outcomes, s.commitDeletes(ctx, deletes, remote)...)
		for _, e := range creates {
			res.Outcomes = append(res.Outcomes, s.commitAppend(ctx, e))
		}

		s.entries = removeDeleted(s.entries)
	}

	failed := res.Failed()
	s.logger.InfoContext(ctx, "commit finished",
		"sheet", s.ref.Key(),
		"updates", res.Count(OpUpdate),
		"deletes", res.Count(OpDelete),
		"appends", res.Count(OpAppend),
		"failed", len(failed),
	)
	s.logAudit(ctx, AuditLogParams{
		Action:   ActionCommit,
		RowIndex: -1,
		Failed:   len(failed) > 0,
		RowData: map[string]any{
			"updates": res.Count(OpUpdate),
			"deletes": res.Count(OpDelete),
			"appends": res.Count(OpAppend),
			"failed":  len(failed),
		},
	})

	if err := s.reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "reload after commit failed", "sheet", s.ref.Key(), "error", err)
		return res, err
	}
	res.Reloaded = true

	if len(failed) > 0 {
		s.restage(ctx, failed, staged)
		return res, &PartialCommitError{Failed: failed}
	}
	return res, nil
}

// remoteIndex is the sheet as fetched at the start of a commit.
type remoteIndex struct {
	rows   [][]string
	layout Layout
	byID   map[string]int
}

func (s *RecordStore) fetchRemote(ctx context.Context) (remoteIndex, error) {
	rows, err := s.client.FetchRows(ctx, s.ref)
	if err != nil {
		return remoteIndex{}, &LoadError{Reason: "verify sheet before commit", Err: err}
	}
	if len(rows) == 0 {
		return remoteIndex{}, &LoadError{Reason: "worksheet has no header row"}
	}
	layout, err := ResolveLayout(rows[0])
	if err != nil {
		return remoteIndex{}, &LoadError{Reason: "verify header before commit", Err: err}
	}
	if layout != s.layout {
		return remoteIndex{}, &LoadError{Reason: "column order changed since load; reload before committing"}
	}

	data := rows[1:]
	byID := make(map[string]int, len(data))
	for i, row := range data {
		id := layout.Cell(row, ColRecordID)
		if id == "" {
			continue
		}
		if _, dup := byID[id]; !dup {
			byID[id] = i
		}
	}
	return remoteIndex{rows: data, layout: layout, byID: byID}, nil
}

// locate returns the current row index of a persisted entry.
func (ri remoteIndex) locate(e *entry) (int, error) {
	if e.remoteID != "" {
		idx, ok := ri.byID[e.remoteID]
		if !ok {
			return -1, fmt.Errorf("%w: record %s is no longer in the sheet", ErrStaleRow, e.remoteID)
		}
		return idx, nil
	}

	// Adopted rows have no id in the sheet yet; they are matched by position
	// and the name seen at load.
	idx := e.rec.SheetRowIndex
	if idx < 0 || idx >= len(ri.rows) {
		return -1, fmt.Errorf("%w: row %d is no longer in the sheet", ErrStaleRow, idx)
	}
	row := ri.rows[idx]
	if ri.layout.Cell(row, ColRecordID) != "" || ri.layout.Cell(row, ColName) != e.remoteName {
		return -1, fmt.Errorf("%w: row %d no longer holds %q", ErrStaleRow, idx, e.remoteName)
	}
	return idx, nil
}

func (s *RecordStore) commitUpdate(ctx context.Context, e *entry, remote remoteIndex) Outcome {
	o := Outcome{
		Op:       OpUpdate,
		RecordID: e.rec.RecordID,
		RowIndex: e.rec.SheetRowIndex,
		Record:   e.rec.Clone(),
	}
	defer s.auditOutcome(ctx, &o)

	if e.dirty && len(e.issues) > 0 {
		// Writing now would blank the unparseable cells.
		o.Err = &ValidationError{RecordID: e.rec.RecordID, Violations: maps.Clone(e.issues)}
		return o
	}

	idx, err := remote.locate(e)
	if err != nil {
		o.Err = err
		return o
	}
	o.RowIndex = idx

	values := s.layout.Arrange(e.rec.Values())
	if !e.dirty {
		values = s.layout.WithCell(remote.rows[idx], ColRecordID, e.rec.RecordID)
	}
	if err := s.client.UpdateRow(ctx, s.ref, idx, values); err != nil {
		o.Err = fmt.Errorf("update record %s at row %d: %w", e.rec.RecordID, idx, err)
		return o
	}

	e.dirty = false
	e.remoteID = e.rec.RecordID
	e.remoteName = e.rec.Name
	return o
}

func (s *RecordStore) commitDeletes(ctx context.Context, deletes []*entry, remote remoteIndex) []Outcome {
	type target struct {
		e   *entry
		idx int
	}

	var out []Outcome
	targets := make([]target, 0, len(deletes))
	for _, e := range deletes {
		idx, err := remote.locate(e)
		if err != nil {
			o := Outcome{Op: OpDelete, RecordID: e.rec.RecordID, RowIndex: e.rec.SheetRowIndex, Record: e.rec.Clone(), Err: err}
			s.auditOutcome(ctx, &o)
			out = append(out, o)
			continue
		}
		targets = append(targets, target{e: e, idx: idx})
	}

	// Highest index first so earlier deletions never shift later targets.
	sort.Slice(targets, func(i, j int) bool { return targets[i].idx > targets[j].idx })

	for _, t := range targets {
		o := Outcome{Op: OpDelete, RecordID: t.e.rec.RecordID, RowIndex: t.idx, Record: t.e.rec.Clone()}
		if err := s.client.DeleteRow(ctx, s.ref, t.idx); err != nil {
			o.Err = fmt.Errorf("delete record %s at row %d: %w", t.e.rec.RecordID, t.idx, err)
		} else {
			t.e.removed = true
			s.spent[t.e.rec.RecordID] = struct{}{}
		}
		s.auditOutcome(ctx, &o)
		out = append(out, o)
	}
	return out
}

func (s *RecordStore) commitAppend(ctx context.Context, e *entry) Outcome {
	o := Outcome{
		Op:       OpAppend,
		DraftRef: e.rec.DraftRef,
		RowIndex: -1,
		Record:   e.rec.Clone(),
	}
	defer s.auditOutcome(ctx, &o)

	id, err := s.nextID(s.liveIDs())
	if err != nil {
		o.Err = fmt.Errorf("append %s: %w", e.rec.DraftRef, err)
		return o
	}

	rec := e.rec.Clone()
	rec.RecordID = id
	ar, err := s.client.AppendRow(ctx, s.ref, s.layout.Arrange(rec.Values()))
	if err != nil {
		o.Err = fmt.Errorf("append %s: %w", e.rec.DraftRef, err)
		return o
	}
	if ar.RecordID != "" && ar.RecordID != id {
		rec.RecordID = ar.RecordID
		s.spent[ar.RecordID] = struct{}{}
	}
	rec.SheetRowIndex = ar.RowIndex
	rec.DraftRef = ""

	o.RecordID = rec.RecordID
	o.RowIndex = ar.RowIndex
	o.Record = rec.Clone()

	e.rec = rec
	e.dirty = false
	e.remoteID = rec.RecordID
	e.remoteName = rec.Name
	return o
}

func (s *RecordStore) liveIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.entries))
	for _, e := range s.entries {
		if e.rec.RecordID != "" {
			ids[e.rec.RecordID] = struct{}{}
		}
	}
	return ids
}

// stagedUpdate is what an update carried into a commit besides the record.
type stagedUpdate struct {
	idOnly bool       // adopted row written back with only its record_id
	issues Violations // load issues the caller had not overwritten
}

// restage re-applies failed operations to the freshly reloaded collection.
func (s *RecordStore) restage(ctx context.Context, failed []Outcome, staged map[string]stagedUpdate) {
	for _, o := range failed {
		switch o.Op {
		case OpUpdate:
			_, e := s.find(o.Record.RecordID)
			if e == nil {
				s.logger.WarnContext(ctx, "failed update not restaged; record is gone", "record_id", o.Record.RecordID)
				continue
			}
			st := staged[o.Record.RecordID]
			if st.idOnly {
				// The reload adopted the row again under the same id.
				continue
			}
			rec := o.Record.Clone()
			rec.SheetRowIndex = e.rec.SheetRowIndex
			e.rec = rec
			e.dirty = true
			e.issues = st.issues

		case OpDelete:
			_, e := s.find(o.Record.RecordID)
			if e == nil {
				s.logger.WarnContext(ctx, "failed delete not restaged; record is gone", "record_id", o.Record.RecordID)
				continue
			}
			e.tombstone = true

		case OpAppend:
			rec := o.Record.Clone()
			rec.RecordID = ""
			rec.SheetRowIndex = -1
			rec.DraftRef = o.DraftRef
			s.entries = append(s.entries, &entry{rec: rec, dirty: true})
		}
	}
}

func (s *RecordStore) auditOutcome(ctx context.Context, o *Outcome) {
	action := map[OpKind]AuditAction{
		OpUpdate: ActionRecordUpdate,
		OpDelete: ActionRecordDelete,
		OpAppend: ActionRecordAppend,
	}[o.Op]

	p := AuditLogParams{
		Action:   action,
		RecordID: o.Key(),
		RowIndex: o.RowIndex,
		Failed:   o.Err != nil,
		RowData:  recordData(o.Record),
	}
	if o.Err != nil {
		p.Reason = o.Err.Error()
		s.logger.WarnContext(ctx, "commit operation failed", "op", o.Op, "record", o.Key(), "error", o.Err)
	}
	s.logAudit(ctx, p)
}

func removeDeleted(entries []*entry) []*entry {
	out := entries[:0]
	for _, e := range entries {
		if !e.removed {
			out = append(out, e)
		}
	}
	return out
}

// IsStale reports whether err means a row changed under a staged edit.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleRow)
}
