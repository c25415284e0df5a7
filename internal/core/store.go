package core

// store.go holds the in-memory product collection for one worksheet.
//
// The sheet is the source of truth. Load replaces the collection wholesale;
// Create, Update and Delete only stage intents locally, and Commit pushes them
// (see commit.go). A store is single-caller: callers serialize access.
//
// Entry states:
//
//	pending create      rec.RecordID == ""         (addressed by DraftRef)
//	persisted           remoteID set, !dirty
//	persisted modified  dirty
//	tombstoned          tombstone, hidden from Records
//
// Rows loaded without a record_id are adopted: they get a fresh id locally and
// the next commit writes that id into the row's record_id cell, leaving the
// other cells as they are. Until then the id is carried across reloads by the
// row's content, so failed operations on adopted rows can be re-staged.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	rec        Record
	dirty      bool
	tombstone  bool
	removed    bool
	remoteID   string     // record_id cell as loaded; "" for adopted rows
	remoteName string     // name cell as loaded, used to re-find adopted rows
	rowKey     string     // raw row content as loaded, used to carry adopted ids
	issues     Violations // sheet cells that could not be parsed on load
}

// StoreOption configures a RecordStore.
type StoreOption func(*RecordStore)

// WithAuditSink records store activity in sink.
func WithAuditSink(sink AuditSink) StoreOption {
	return func(s *RecordStore) {
		if sink != nil {
			s.audit = sink
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *RecordStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator replaces the record_id generator (UUIDv4 by default).
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *RecordStore) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// RecordStore reconciles local product edits with a worksheet.
type RecordStore struct {
	client   SheetClient
	ref      SheetRef
	audit    AuditSink
	logger   *slog.Logger
	newID    func() string
	layout   Layout
	entries  []*entry
	spent    map[string]struct{} // ids issued or retired; never handed out again
	loaded   bool
	loadedAt time.Time
}

// NewRecordStore creates an empty, unloaded store for one worksheet.
func NewRecordStore(client SheetClient, ref SheetRef, opts ...StoreOption) *RecordStore {
	s := &RecordStore{
		client: client,
		ref:    ref,
		audit:  NopAudit{},
		logger: slog.Default(),
		newID:  uuid.NewString,
		spent:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ref returns the worksheet the store is bound to.
func (s *RecordStore) Ref() SheetRef { return s.ref }

// Loaded reports whether Load has succeeded at least once.
func (s *RecordStore) Loaded() bool { return s.loaded }

// LoadedAt is the time of the last successful load.
func (s *RecordStore) LoadedAt() time.Time { return s.loadedAt }

// Load fetches every row, checks the header and replaces the collection.
// Uncommitted edits are discarded. On failure the previous collection is
// kept and a *LoadError is returned.
func (s *RecordStore) Load(ctx context.Context) ([]Record, error) {
	if err := s.reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "load failed", "sheet", s.ref.Key(), "error", err)
		s.logAudit(ctx, AuditLogParams{Action: ActionLoad, RowIndex: -1, Failed: true, Reason: err.Error()})
		return nil, err
	}
	s.logger.DebugContext(ctx, "collection loaded", "sheet", s.ref.Key(), "records", len(s.entries))
	s.logAudit(ctx, AuditLogParams{
		Action:   ActionLoad,
		RowIndex: -1,
		RowData:  map[string]any{"records": len(s.entries)},
	})
	return s.Records(), nil
}

func (s *RecordStore) reload(ctx context.Context) error {
	rows, err := s.client.FetchRows(ctx, s.ref)
	if err != nil {
		return &LoadError{Reason: "fetch rows", Err: err}
	}
	entries, layout, err := s.parse(rows, s.adoptedIDs())
	if err != nil {
		return err
	}
	s.entries = entries
	s.layout = layout
	s.loaded = true
	s.loadedAt = time.Now()
	return nil
}

// adoptedIDs maps the raw content of rows still lacking a record_id in the
// sheet to the ids they were given locally, in sheet order.
func (s *RecordStore) adoptedIDs() map[string][]string {
	carry := make(map[string][]string)
	for _, e := range s.entries {
		if e.adopted() && !e.removed {
			carry[e.rowKey] = append(carry[e.rowKey], e.rec.RecordID)
		}
	}
	return carry
}

// parse turns fetched rows into entries without touching store state.
// Rows without a record_id whose content matches a key in carry take the
// carried id instead of a new one.
func (s *RecordStore) parse(rows [][]string, carry map[string][]string) ([]*entry, Layout, error) {
	if len(rows) == 0 {
		return nil, Layout{}, &LoadError{Reason: "worksheet has no header row"}
	}
	layout, err := ResolveLayout(rows[0])
	if err != nil {
		return nil, Layout{}, &LoadError{Reason: "verify header", Err: err}
	}

	data := rows[1:]
	entries := make([]*entry, 0, len(data))
	taken := make(map[string]struct{}, len(data))
	firstRow := make(map[string]int, len(data))

	for i, row := range data {
		rec, issues, err := decodeRow(row, layout, i)
		if err != nil {
			return nil, Layout{}, &LoadError{Reason: "decode rows", Err: err}
		}
		if id := rec.RecordID; id != "" {
			if prev, dup := firstRow[id]; dup {
				return nil, Layout{}, &LoadError{
					Reason: "decode rows",
					Err:    fmt.Errorf("rows %d and %d share record_id %q", prev+2, i+2, id),
				}
			}
			firstRow[id] = i
			taken[id] = struct{}{}
		}
		entries = append(entries, &entry{
			rec:        rec,
			remoteID:   rec.RecordID,
			remoteName: rec.Name,
			rowKey:     rowKey(row),
			issues:     issues,
		})
	}

	for _, e := range entries {
		if e.remoteID != "" {
			continue
		}
		if ids := carry[e.rowKey]; len(ids) > 0 {
			carry[e.rowKey] = ids[1:]
			if _, clash := taken[ids[0]]; !clash {
				taken[ids[0]] = struct{}{}
				e.rec.RecordID = ids[0]
				continue
			}
		}
		id, err := s.nextID(taken)
		if err != nil {
			return nil, Layout{}, &LoadError{Reason: "adopt rows without record_id", Err: err}
		}
		taken[id] = struct{}{}
		e.rec.RecordID = id
	}

	return entries, layout, nil
}

func rowKey(row []string) string {
	return strings.Join(row, "\x1f")
}

// nextID returns a fresh record_id that is not in taken and was never issued
// or retired by this store.
func (s *RecordStore) nextID(taken map[string]struct{}) (string, error) {
	for range 8 {
		id := s.newID()
		if !ValidRecordID(id) {
			continue
		}
		if _, ok := s.spent[id]; ok {
			continue
		}
		if _, ok := taken[id]; ok {
			continue
		}
		s.spent[id] = struct{}{}
		return id, nil
	}
	return "", errors.New("could not generate a unique record_id")
}

// Records returns snapshots of every visible record: persisted rows in sheet
// order followed by pending creates in creation order.
func (s *RecordStore) Records() []Record {
	out := make([]Record, 0, len(s.entries))
	for _, e := range s.entries {
		if e.tombstone {
			continue
		}
		out = append(out, e.rec.Clone())
	}
	return out
}

// Len is the number of visible records.
func (s *RecordStore) Len() int {
	n := 0
	for _, e := range s.entries {
		if !e.tombstone {
			n++
		}
	}
	return n
}

// Get returns the record addressed by a record_id or draft ref.
func (s *RecordStore) Get(key string) (Record, error) {
	_, e := s.find(key)
	if e == nil {
		return Record{}, notFound(key)
	}
	return e.rec.Clone(), nil
}

// Issues returns the sheet cells of a record that could not be parsed on
// load. They block updates until the field is overwritten.
func (s *RecordStore) Issues(key string) Violations {
	_, e := s.find(key)
	if e == nil || len(e.issues) == 0 {
		return nil
	}
	out := make(Violations, len(e.issues))
	out.merge(e.issues)
	return out
}

// State reports where a record is in its lifecycle. Unlike Get it also finds
// tombstoned records.
func (s *RecordStore) State(key string) (RecordState, error) {
	for _, e := range s.entries {
		if !e.matches(key) {
			continue
		}
		switch {
		case e.tombstone:
			return StateTombstoned, nil
		case e.rec.IsPending():
			return StatePendingCreate, nil
		case e.dirty || e.adopted():
			return StatePersistedModified, nil
		default:
			return StatePersisted, nil
		}
	}
	return "", notFound(key)
}

// Staged counts the remote operations the next Commit will attempt.
func (s *RecordStore) Staged() Staged {
	var st Staged
	for _, e := range s.entries {
		switch {
		case e.tombstone:
			st.Deletes++
		case e.rec.IsPending():
			st.Creates++
		case e.dirty || e.adopted():
			st.Updates++
		}
	}
	return st
}

// Create validates a draft and stages it for append. The returned snapshot
// carries a DraftRef that addresses it until commit assigns a record_id.
// An empty URL slug is derived from the name; an empty status means draft.
func (s *RecordStore) Create(draft Record) (Record, error) {
	if !s.loaded {
		return Record{}, ErrNotLoaded
	}
	if draft.RecordID != "" {
		return Record{}, &ValidationError{Violations: Violations{
			"record_id": "is assigned on commit and must be empty",
		}}
	}

	rec := normalizeDraft(draft)
	if v := rec.Validate(); len(v) > 0 {
		return Record{}, &ValidationError{Violations: v}
	}

	rec.SheetRowIndex = -1
	rec.DraftRef = "draft-" + uuid.NewString()
	s.entries = append(s.entries, &entry{rec: rec, dirty: true})
	return rec.Clone(), nil
}

func normalizeDraft(d Record) Record {
	rec := Record{
		Name:             strings.TrimSpace(d.Name),
		Description:      strings.TrimSpace(d.Description),
		ShortDescription: strings.TrimSpace(d.ShortDescription),
		RegularPrice:     d.RegularPrice,
		SalePrice:        d.SalePrice,
		URLSlug:          strings.TrimSpace(d.URLSlug),
		Categories:       cleanCategories(d.Categories),
		Status:           ParseStatus(string(d.Status)),
		SourceID:         strings.TrimSpace(d.SourceID),
	}
	if rec.URLSlug == "" {
		rec.URLSlug = Slugify(rec.Name)
	}
	return rec
}

// Update merges changes into a record. The merged record is validated first;
// if it is invalid nothing changes and a *ValidationError names each field.
// Changes that leave the content identical do not mark the record dirty.
func (s *RecordStore) Update(key string, ch Changes) (Record, error) {
	if !s.loaded {
		return Record{}, ErrNotLoaded
	}
	_, e := s.find(key)
	if e == nil {
		return Record{}, notFound(key)
	}

	if ch.Status != nil {
		st := ParseStatus(string(*ch.Status))
		ch.Status = &st
	}
	merged := ch.Apply(e.rec)

	touched := ch.Fields()
	v := merged.Validate()
	for field, msg := range e.issues {
		if slices.Contains(touched, field) {
			continue
		}
		if _, ok := v[field]; !ok {
			v[field] = msg
		}
	}
	if len(v) > 0 {
		return Record{}, &ValidationError{RecordID: key, Violations: v}
	}

	for _, field := range touched {
		delete(e.issues, field)
	}
	if !merged.sameContent(e.rec) {
		e.rec = merged
		e.dirty = true
	}
	return e.rec.Clone(), nil
}

// Delete stages removal of a record. Persisted records are tombstoned and
// keep their index until commit; pending creates are dropped outright.
func (s *RecordStore) Delete(key string) error {
	if !s.loaded {
		return ErrNotLoaded
	}
	i, e := s.find(key)
	if e == nil {
		return notFound(key)
	}
	if e.rec.IsPending() {
		s.entries = slices.Delete(s.entries, i, i+1)
		return nil
	}
	e.tombstone = true
	return nil
}

// find locates a visible entry by record_id or, for pending creates, DraftRef.
func (s *RecordStore) find(key string) (int, *entry) {
	if key == "" {
		return -1, nil
	}
	for i, e := range s.entries {
		if !e.tombstone && e.matches(key) {
			return i, e
		}
	}
	return -1, nil
}

// adopted reports whether the entry's record_id has not reached the sheet yet.
func (e *entry) adopted() bool {
	return e.remoteID == "" && !e.rec.IsPending()
}

func (e *entry) matches(key string) bool {
	if key == "" {
		return false
	}
	if e.rec.RecordID != "" {
		return e.rec.RecordID == key
	}
	return e.rec.DraftRef == key
}

func (s *RecordStore) logAudit(ctx context.Context, p AuditLogParams) {
	p.SheetKey = s.ref.Key()
	if err := s.audit.LogAudit(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "audit log write failed", "action", p.Action, "error", err)
	}
}

// recordData flattens a record for audit row data.
func recordData(r Record) map[string]any {
	values := r.Values()
	m := make(map[string]any, len(values))
	for i, v := range values {
		m[Columns[i].Field] = v
	}
	return m
}
