// Package session holds the candidate-selection and saved-list state machine.
//
// [State] is a plain value. Every operation on it is a pure transform that
// returns the next State together with the side effects the transition
// requires ([Effect]). [Controller] owns one State, applies transitions under
// a mutex and then performs the effects outside of it, so the network
// boundary never blocks other operations.
package session

import (
	"errors"
	"slices"
	"time"

	"github.com/MrWong99/irum/internal/validate"
	"github.com/MrWong99/irum/pkg/types"
)

// ErrDuplicateEntry is returned when saving a candidate that is already in the
// saved list for the same English name.
var ErrDuplicateEntry = errors.New("session: name already saved")

// View is the active screen.
type View int

const (
	// ViewHome is the input and candidate screen.
	ViewHome View = iota
	// ViewSaved lists saved entries.
	ViewSaved
)

// String returns the lower-case view name.
func (v View) String() string {
	switch v {
	case ViewHome:
		return "home"
	case ViewSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// State is the complete session state.
//
// Candidates and Saved are never modified in place; transitions that change
// them build new slices, so a State handed out earlier stays valid.
type State struct {
	Input      string
	Candidates []types.Candidate

	// Selected indexes Candidates, or is 0 when there are none.
	Selected int

	// Loading is set while the most recent submit is in flight.
	Loading bool

	// Err is the current inline error: a validation error or a conversion
	// failure.
	Err error

	View  View
	Saved types.SavedList

	// submitSeq identifies the most recent submit that passed validation.
	submitSeq uint64

	// savedGen counts mutations of Saved.
	savedGen uint64
}

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

// ConvertEffect asks for a conversion of Name. Its result must be fed back
// through [State.ConvertDone] with the same Seq.
type ConvertEffect struct {
	Seq  uint64
	Name string
}

// PersistEffect asks for List to be written to local storage. Gen orders
// writes: an effect older than one already written can be skipped.
type PersistEffect struct {
	Gen  uint64
	List types.SavedList
}

// RecordSaveEffect asks for a best-effort remote save of Entry.
type RecordSaveEffect struct {
	Entry types.SavedEntry
}

// RecordDeleteEffect asks for a best-effort remote delete of RemoteID.
type RecordDeleteEffect struct {
	RemoteID string
}

func (ConvertEffect) effect()      {}
func (PersistEffect) effect()      {}
func (RecordSaveEffect) effect()   {}
func (RecordDeleteEffect) effect() {}

// NewState returns the initial state over a loaded saved list.
func NewState(saved types.SavedList) State {
	return State{View: ViewHome, Saved: saved.Clone()}
}

// ChangeInput sets the input text and validates it.
func (s State) ChangeInput(text string) State {
	s.Input = text
	s.Err = validate.Name(text)
	return s
}

// Submit validates name and, when valid, starts a conversion. An invalid
// name only sets Err.
func (s State) Submit(name string) (State, []Effect) {
	s.Input = name
	if err := validate.Name(name); err != nil {
		s.Err = err
		return s, nil
	}
	s.submitSeq++
	s.Loading = true
	s.Err = nil
	return s, []Effect{ConvertEffect{Seq: s.submitSeq, Name: name}}
}

// ConvertDone applies the outcome of the conversion started with seq. The
// result of a superseded submit is discarded and stale reports true.
// On failure the previous candidates stay in place. On success Err follows
// the current input, which may have changed while the conversion ran.
func (s State) ConvertDone(seq uint64, candidates []types.Candidate, err error) (next State, stale bool) {
	if seq != s.submitSeq {
		return s, true
	}
	s.Loading = false
	if err != nil {
		s.Err = err
		return s, false
	}
	s.Err = validate.Name(s.Input)
	s.Candidates = slices.Clone(candidates)
	if s.Candidates == nil {
		s.Candidates = []types.Candidate{}
	}
	s.Selected = 0
	return s, false
}

// Select moves the selection to i. Out-of-range indexes are ignored.
func (s State) Select(i int) State {
	if i >= 0 && i < len(s.Candidates) {
		s.Selected = i
	}
	return s
}

// Current returns the selected candidate, if any.
func (s State) Current() (types.Candidate, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Candidates) {
		return types.Candidate{}, false
	}
	return s.Candidates[s.Selected], true
}

// IsDuplicate reports whether saving localized for the English name english
// would repeat an existing entry.
func (s State) IsDuplicate(english, localized string) bool {
	return s.Saved.IndexOf(types.MakeKey(english, localized)) >= 0
}

// SaveCurrent prepends the selected candidate to the saved list. It is a
// no-op without candidates and returns [ErrDuplicateEntry], leaving the
// state unchanged, when the entry exists already.
func (s State) SaveCurrent(now time.Time) (State, []Effect, error) {
	cur, ok := s.Current()
	if !ok {
		return s, nil, nil
	}
	if s.IsDuplicate(s.Input, cur.LocalizedName) {
		return s, nil, ErrDuplicateEntry
	}

	entry := types.SavedEntry{
		EnglishName:   s.Input,
		LocalizedName: cur.LocalizedName,
		Meaning:       cur.Meaning,
		EraScore:      cur.EraScore,
		SavedAt:       now,
	}
	saved := make(types.SavedList, 0, len(s.Saved)+1)
	saved = append(saved, entry)
	saved = append(saved, s.Saved...)
	s.Saved = saved
	s.savedGen++

	return s, []Effect{
		s.persist(),
		RecordSaveEffect{Entry: entry},
	}, nil
}

// DeleteSaved removes the entry at i. Out-of-range indexes are a no-op and
// removed reports false.
func (s State) DeleteSaved(i int) (next State, effects []Effect, removed bool) {
	if i < 0 || i >= len(s.Saved) {
		return s, nil, false
	}
	entry := s.Saved[i]
	saved := make(types.SavedList, 0, len(s.Saved)-1)
	saved = append(saved, s.Saved[:i]...)
	saved = append(saved, s.Saved[i+1:]...)
	s.Saved = saved
	s.savedGen++

	effects = []Effect{s.persist()}
	if entry.RemoteID != "" {
		effects = append(effects, RecordDeleteEffect{RemoteID: entry.RemoteID})
	}
	return s, effects, true
}

// AttachRemoteID records the remote id reported for the entry identified by
// key and savedAt. When that entry no longer exists the remote record is an
// orphan and a delete is requested for it instead.
func (s State) AttachRemoteID(key types.EntryKey, savedAt time.Time, remoteID string) (State, []Effect) {
	if remoteID == "" {
		return s, nil
	}
	i := s.Saved.IndexOf(key)
	if i < 0 || !s.Saved[i].SavedAt.Equal(savedAt) {
		return s, []Effect{RecordDeleteEffect{RemoteID: remoteID}}
	}
	if s.Saved[i].RemoteID == remoteID {
		return s, nil
	}
	saved := s.Saved.Clone()
	saved[i].RemoteID = remoteID
	s.Saved = saved
	s.savedGen++
	return s, []Effect{s.persist()}
}

// Navigate switches the active view.
func (s State) Navigate(v View) State {
	s.View = v
	return s
}

func (s State) persist() PersistEffect {
	return PersistEffect{Gen: s.savedGen, List: s.Saved.Clone()}
}

// clone returns a copy of s that shares no slices with it.
func (s State) clone() State {
	s.Candidates = slices.Clone(s.Candidates)
	s.Saved = s.Saved.Clone()
	return s
}
