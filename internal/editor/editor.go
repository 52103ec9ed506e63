// Package editor keeps the editable view of the active record in step with
// the working record store and the submitted set.
package editor

import (
	"strings"

	"cv-assistant/internal/records"
)

// Editor tracks which working record is active and holds its current view.
// Every view switch and submission captures the view into the store first.
//
// Editor is not safe for concurrent use.
type Editor struct {
	store     *records.Store
	submitted []records.Record

	active int
	view   *View
}

// New returns an editor over store with no active record.
func New(store *records.Store) *Editor {
	if store == nil {
		store = records.NewStore()
	}
	return &Editor{store: store, active: -1}
}

// Store exposes the working record store.
func (e *Editor) Store() *records.Store {
	return e.store
}

// Open makes freshly loaded records visible. When nothing is active the first
// of names becomes active; when the active record was reloaded its view is
// rendered again from the store.
func (e *Editor) Open(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if e.view == nil {
		idx := e.indexOf(names[0])
		if idx < 0 {
			return records.ErrNotFound
		}
		return e.activate(idx)
	}
	for _, name := range names {
		if name == e.view.Name {
			return e.activate(e.active)
		}
	}
	return nil
}

// Active returns a copy of the active record and its index.
func (e *Editor) Active() (records.Record, int, error) {
	if e.view == nil {
		return records.Record{}, -1, ErrNoActiveRecord
	}
	rec, err := e.store.Get(e.view.Name)
	if err != nil {
		return records.Record{}, -1, err
	}
	return rec, e.active, nil
}

// View returns a copy of the current view.
func (e *Editor) View() (View, error) {
	if e.view == nil {
		return View{}, ErrNoActiveRecord
	}
	return e.view.clone(), nil
}

// SetView replaces the current view with one edited by the client.
func (e *Editor) SetView(v View) error {
	if e.view == nil {
		return ErrNoActiveRecord
	}
	if v.Name != "" && v.Name != e.view.Name {
		return ErrViewMismatch
	}
	for _, sec := range v.Sections {
		if _, ok := sectionFields[sec.Kind]; !ok {
			return ErrUnknownSection
		}
	}
	next := v.clone()
	next.Name = e.view.Name
	e.view = &next
	return nil
}

// SetField updates one tagged input of a row.
func (e *Editor) SetField(kind SectionKind, row int, tag string, value string) error {
	sec, err := e.sectionOf(kind)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(sec.Rows) {
		return ErrRowOutOfRange
	}
	inputs := sec.Rows[row].Inputs
	for i := range inputs {
		if inputs[i].Tag == tag {
			inputs[i].Value = value
			return nil
		}
	}
	for _, known := range sectionFields[kind] {
		if known == tag {
			sec.Rows[row].Inputs = append(inputs, Input{Tag: tag, Value: value})
			return nil
		}
	}
	return ErrUnknownField
}

// AddRow appends an empty row to a section and returns it.
func (e *Editor) AddRow(kind SectionKind) (Row, error) {
	sec, err := e.sectionOf(kind)
	if err != nil {
		return Row{}, err
	}
	row := newRow(nil, kind)
	sec.Rows = append(sec.Rows, row)
	return row, nil
}

// DeleteRow removes the row at position row.
func (e *Editor) DeleteRow(kind SectionKind, row int) error {
	sec, err := e.sectionOf(kind)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(sec.Rows) {
		return ErrRowOutOfRange
	}
	sec.Rows = append(sec.Rows[:row], sec.Rows[row+1:]...)
	return nil
}

// DeleteRowByID removes the row with the given ID.
func (e *Editor) DeleteRowByID(kind SectionKind, id string) error {
	sec, err := e.sectionOf(kind)
	if err != nil {
		return err
	}
	for i := range sec.Rows {
		if sec.Rows[i].ID == id {
			return e.DeleteRow(kind, i)
		}
	}
	return ErrRowOutOfRange
}

// CaptureActive writes the current view back into the store and returns the
// captured record.
func (e *Editor) CaptureActive() (records.Record, error) {
	if e.view == nil {
		return records.Record{}, ErrNoActiveRecord
	}
	prior, err := e.store.Get(e.view.Name)
	if err != nil {
		return records.Record{}, err
	}
	captured := Capture(prior, *e.view)
	if err := e.store.Load(captured.Name, captured); err != nil {
		return records.Record{}, err
	}
	return captured.Clone(), nil
}

// Switch captures the active view, then activates the record at index.
func (e *Editor) Switch(index int) error {
	if index < 0 || index >= e.store.Len() {
		return ErrIndexOutOfRange
	}
	if e.view != nil {
		if _, err := e.CaptureActive(); err != nil {
			return err
		}
	}
	return e.activate(index)
}

// Submit captures the active view and merges the record into the submitted
// set, replacing any submitted record with the same name.
func (e *Editor) Submit() (records.Record, error) {
	captured, err := e.CaptureActive()
	if err != nil {
		return records.Record{}, err
	}
	e.submitted = records.UpsertByName(e.submitted, []records.Record{captured})
	return captured, nil
}

// Submitted returns a copy of the submitted set.
func (e *Editor) Submitted() []records.Record {
	return records.CloneAll(e.submitted)
}

// SetSubmitted replaces the submitted set, for hydration from storage.
// Records without a name are skipped.
func (e *Editor) SetSubmitted(recs []records.Record) {
	named := make([]records.Record, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		named = append(named, rec)
	}
	e.submitted = records.UpsertByName(nil, named)
}

// Remove drops a working record. Removing the active record discards its
// view and activates the first remaining record, if any.
func (e *Editor) Remove(name string) error {
	name = strings.TrimSpace(name)
	idx := e.indexOf(name)
	if idx < 0 {
		return records.ErrNotFound
	}
	e.store.Delete(name)

	switch {
	case e.view == nil:
		return nil
	case idx < e.active:
		e.active--
		return nil
	case idx > e.active:
		return nil
	}
	e.view, e.active = nil, -1
	if e.store.Len() == 0 {
		return nil
	}
	return e.activate(0)
}

// DeleteSubmitted removes a record from the submitted set.
func (e *Editor) DeleteSubmitted(name string) error {
	name = strings.TrimSpace(name)
	for _, rec := range e.submitted {
		if rec.Name == name {
			e.submitted = records.RemoveByName(e.submitted, name)
			return nil
		}
	}
	return records.ErrNotFound
}

func (e *Editor) activate(index int) error {
	names := e.store.Names()
	if index < 0 || index >= len(names) {
		return ErrIndexOutOfRange
	}
	rec, err := e.store.Get(names[index])
	if err != nil {
		return err
	}
	view := Render(rec)
	e.view = &view
	e.active = index
	return nil
}

func (e *Editor) indexOf(name string) int {
	for i, n := range e.store.Names() {
		if n == name {
			return i
		}
	}
	return -1
}

func (e *Editor) sectionOf(kind SectionKind) (*Section, error) {
	if e.view == nil {
		return nil, ErrNoActiveRecord
	}
	if _, ok := sectionFields[kind]; !ok {
		return nil, ErrUnknownSection
	}
	sec, ok := e.view.section(kind)
	if !ok {
		e.view.Sections = append(e.view.Sections, Section{Kind: kind})
		sec = &e.view.Sections[len(e.view.Sections)-1]
	}
	return sec, nil
}
