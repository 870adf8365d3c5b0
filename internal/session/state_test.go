package session

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/irum/internal/validate"
	"github.com/MrWong99/irum/pkg/types"
)

var (
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	harin = types.Candidate{LocalizedName: "하린", Meaning: "bright", EraScore: 87}
	jia   = types.Candidate{LocalizedName: "지아", Meaning: "wisdom", EraScore: 74}
)

// withCandidates returns a state that has converted input successfully.
func withCandidates(input string, cands ...types.Candidate) State {
	s, effects := NewState(nil).Submit(input)
	seq := effects[0].(ConvertEffect).Seq
	s, _ = s.ConvertDone(seq, cands, nil)
	return s
}

func TestState_SubmitInvalidHasNoEffects(t *testing.T) {
	s, effects := NewState(nil).Submit("R2D2")
	if len(effects) != 0 {
		t.Errorf("effects = %v, want none", effects)
	}
	if !errors.Is(s.Err, validate.ErrInvalidCharacters) {
		t.Errorf("Err = %v, want ErrInvalidCharacters", s.Err)
	}
	if s.Loading {
		t.Error("Loading set for invalid input")
	}
}

func TestState_SubmitRequestsConversion(t *testing.T) {
	prev := NewState(nil).ChangeInput("1")
	s, effects := prev.Submit("Alice")
	if !s.Loading || s.Err != nil {
		t.Errorf("Loading = %v, Err = %v; want true, nil", s.Loading, s.Err)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v, want one", effects)
	}
	ce, ok := effects[0].(ConvertEffect)
	if !ok || ce.Name != "Alice" {
		t.Errorf("effect = %#v, want ConvertEffect for Alice", effects[0])
	}
}

func TestState_ConvertDoneResetsSelection(t *testing.T) {
	s := withCandidates("Alice", harin, jia).Select(1)
	s, effects := s.Submit("Alice")
	s, stale := s.ConvertDone(effects[0].(ConvertEffect).Seq, []types.Candidate{jia, harin}, nil)
	if stale {
		t.Fatal("latest result reported stale")
	}
	if s.Selected != 0 || s.Loading {
		t.Errorf("Selected = %d, Loading = %v; want 0, false", s.Selected, s.Loading)
	}
	if len(s.Candidates) != 2 || s.Candidates[0] != jia {
		t.Errorf("Candidates = %v", s.Candidates)
	}
}

func TestState_ConvertFailureKeepsCandidates(t *testing.T) {
	s := withCandidates("Alice", harin)
	s, effects := s.Submit("Bob")
	svcErr := errors.New("service down")
	s, _ = s.ConvertDone(effects[0].(ConvertEffect).Seq, nil, svcErr)

	if !errors.Is(s.Err, svcErr) {
		t.Errorf("Err = %v, want service error", s.Err)
	}
	if s.Loading {
		t.Error("Loading not cleared after failure")
	}
	if len(s.Candidates) != 1 || s.Candidates[0] != harin {
		t.Errorf("Candidates = %v, want prior candidates kept", s.Candidates)
	}
}

func TestState_StaleResultDiscarded(t *testing.T) {
	s := NewState(nil)
	s, first := s.Submit("Alice")
	s, second := s.Submit("Bob")

	s, stale := s.ConvertDone(first[0].(ConvertEffect).Seq, []types.Candidate{harin}, nil)
	if !stale {
		t.Fatal("superseded result not reported stale")
	}
	if !s.Loading || len(s.Candidates) != 0 {
		t.Errorf("stale result applied: Loading = %v, Candidates = %v", s.Loading, s.Candidates)
	}

	s, stale = s.ConvertDone(second[0].(ConvertEffect).Seq, []types.Candidate{jia}, nil)
	if stale || s.Loading {
		t.Fatalf("stale = %v, Loading = %v; want false, false", stale, s.Loading)
	}
	if s.Candidates[0] != jia {
		t.Errorf("Candidates = %v, want the latest result", s.Candidates)
	}
}

func TestState_EmptyResultIsValid(t *testing.T) {
	s := withCandidates("Zyx")
	if s.Candidates == nil || len(s.Candidates) != 0 || s.Err != nil {
		t.Errorf("Candidates = %#v, Err = %v; want empty, nil", s.Candidates, s.Err)
	}
	next, effects, err := s.SaveCurrent(t0)
	if err != nil || len(effects) != 0 || len(next.Saved) != 0 {
		t.Errorf("SaveCurrent without candidates: effects = %v, err = %v", effects, err)
	}
}

func TestState_Select(t *testing.T) {
	s := withCandidates("Alice", harin, jia)
	for _, i := range []int{-1, 2, 100} {
		if got := s.Select(1).Select(i).Selected; got != 1 {
			t.Errorf("Select(%d) changed Selected to %d", i, got)
		}
	}
	if got := s.Select(1).Selected; got != 1 {
		t.Errorf("Select(1) = %d", got)
	}
}

func TestState_SaveCurrent(t *testing.T) {
	s := withCandidates(" Alice", harin, jia).Select(1)
	s, effects, err := s.SaveCurrent(t0)
	if err != nil {
		t.Fatalf("SaveCurrent: %v", err)
	}

	want := types.SavedEntry{
		EnglishName:   " Alice",
		LocalizedName: "지아",
		Meaning:       "wisdom",
		EraScore:      74,
		SavedAt:       t0,
	}
	if len(s.Saved) != 1 || s.Saved[0] != want {
		t.Fatalf("Saved = %+v, want [%+v]", s.Saved, want)
	}
	if len(effects) != 2 {
		t.Fatalf("effects = %v, want persist then record save", effects)
	}
	pe, ok := effects[0].(PersistEffect)
	if !ok || len(pe.List) != 1 {
		t.Errorf("effects[0] = %#v, want PersistEffect with the new list", effects[0])
	}
	if rs, ok := effects[1].(RecordSaveEffect); !ok || rs.Entry != want {
		t.Errorf("effects[1] = %#v, want RecordSaveEffect", effects[1])
	}
}

func TestState_SaveCurrentPrepends(t *testing.T) {
	s := withCandidates("Alice", harin, jia)
	s, _, _ = s.SaveCurrent(t0)
	s, _, _ = s.Select(1).SaveCurrent(t0.Add(time.Minute))
	if len(s.Saved) != 2 || s.Saved[0].LocalizedName != "지아" {
		t.Errorf("Saved = %+v, want newest first", s.Saved)
	}
}

func TestState_SaveDuplicate(t *testing.T) {
	s := withCandidates("Alice", harin)
	s, _, _ = s.SaveCurrent(t0)

	for _, input := range []string{"Alice", "alice", "  ALICE "} {
		dup := s.ChangeInput(input)
		next, effects, err := dup.SaveCurrent(t0.Add(time.Hour))
		if !errors.Is(err, ErrDuplicateEntry) {
			t.Errorf("SaveCurrent(%q) err = %v, want ErrDuplicateEntry", input, err)
		}
		if len(effects) != 0 || len(next.Saved) != 1 {
			t.Errorf("duplicate save mutated state: effects = %v, saved = %d", effects, len(next.Saved))
		}
	}

	// A different English name with the same localized name is not a duplicate.
	other, _, err := s.ChangeInput("Alicia").SaveCurrent(t0)
	if err != nil || len(other.Saved) != 2 {
		t.Errorf("Alicia: err = %v, saved = %d", err, len(other.Saved))
	}
}

func TestState_DeleteSaved(t *testing.T) {
	s := NewState(types.SavedList{
		{EnglishName: "Alice", LocalizedName: "하린", SavedAt: t0, RemoteID: "9"},
		{EnglishName: "Bob", LocalizedName: "보빈", SavedAt: t0},
	})

	next, effects, removed := s.DeleteSaved(5)
	if removed || len(effects) != 0 || len(next.Saved) != 2 {
		t.Errorf("out-of-range delete changed something: %v %v", removed, effects)
	}

	next, effects, removed = s.DeleteSaved(0)
	if !removed || len(next.Saved) != 1 || next.Saved[0].EnglishName != "Bob" {
		t.Fatalf("DeleteSaved(0) = %+v, %v", next.Saved, removed)
	}
	if len(effects) != 2 {
		t.Fatalf("effects = %v, want persist and record delete", effects)
	}
	if rd, ok := effects[1].(RecordDeleteEffect); !ok || rd.RemoteID != "9" {
		t.Errorf("effects[1] = %#v", effects[1])
	}
	if len(s.Saved) != 2 {
		t.Error("DeleteSaved modified the receiver's list")
	}

	last, effects, _ := next.DeleteSaved(0)
	if len(last.Saved) != 0 || len(effects) != 1 {
		t.Errorf("deleting entry without remote id: saved = %v, effects = %v", last.Saved, effects)
	}
	if pe := effects[0].(PersistEffect); pe.List == nil || len(pe.List) != 0 {
		t.Errorf("persisted list = %#v, want empty non-nil", pe.List)
	}
}

func TestState_AttachRemoteID(t *testing.T) {
	s := withCandidates("Alice", harin)
	s, _, _ = s.SaveCurrent(t0)
	key := types.MakeKey("Alice", "하린")

	next, effects := s.AttachRemoteID(key, t0, "31")
	if next.Saved[0].RemoteID != "31" {
		t.Errorf("RemoteID = %q, want 31", next.Saved[0].RemoteID)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v, want persist", effects)
	}
	if _, ok := effects[0].(PersistEffect); !ok {
		t.Errorf("effect = %#v, want PersistEffect", effects[0])
	}
	if s.Saved[0].RemoteID != "" {
		t.Error("AttachRemoteID modified the receiver's list")
	}

	// Entry gone: the remote record is cleaned up.
	gone, _, _ := next.DeleteSaved(0)
	_, effects = gone.AttachRemoteID(key, t0, "32")
	if len(effects) != 1 {
		t.Fatalf("effects = %v, want record delete", effects)
	}
	if rd, ok := effects[0].(RecordDeleteEffect); !ok || rd.RemoteID != "32" {
		t.Errorf("effect = %#v, want RecordDeleteEffect{32}", effects[0])
	}

	// Same key saved again later: an id for the old save does not attach.
	_, effects = next.AttachRemoteID(key, t0.Add(-time.Hour), "33")
	if _, ok := effects[0].(RecordDeleteEffect); !ok {
		t.Errorf("effect = %#v, want RecordDeleteEffect", effects[0])
	}
}

func TestState_Navigate(t *testing.T) {
	s := NewState(nil)
	if s.View != ViewHome {
		t.Fatalf("initial view = %v", s.View)
	}
	if got := s.Navigate(ViewSaved).View; got != ViewSaved {
		t.Errorf("view = %v, want saved", got)
	}
	if ViewSaved.String() != "saved" || ViewHome.String() != "home" {
		t.Error("unexpected View.String")
	}
}

func TestState_ChangeInputValidatesLive(t *testing.T) {
	s := NewState(nil)
	if s = s.ChangeInput("Al1ce"); !errors.Is(s.Err, validate.ErrInvalidCharacters) {
		t.Errorf("Err = %v, want ErrInvalidCharacters", s.Err)
	}
	if s = s.ChangeInput("Alice"); s.Err != nil {
		t.Errorf("Err = %v, want nil", s.Err)
	}
	if s.Input != "Alice" {
		t.Errorf("Input = %q", s.Input)
	}
}

func TestState_ConvertDoneKeepsLiveInputError(t *testing.T) {
	s, effects := NewState(nil).Submit("Alice")
	s = s.ChangeInput("Al1ce")
	s, _ = s.ConvertDone(effects[0].(ConvertEffect).Seq, []types.Candidate{harin}, nil)
	if !errors.Is(s.Err, validate.ErrInvalidCharacters) {
		t.Errorf("Err = %v, want ErrInvalidCharacters for %q", s.Err, s.Input)
	}
	if len(s.Candidates) != 1 {
		t.Errorf("candidates = %v, want [%v]", s.Candidates, harin)
	}

	s, effects = s.ChangeInput("Alice").Submit("Alice")
	s = s.ChangeInput("Alicia")
	s, _ = s.ConvertDone(effects[0].(ConvertEffect).Seq, []types.Candidate{jia}, nil)
	if s.Err != nil {
		t.Errorf("Err = %v, want nil for valid input %q", s.Err, s.Input)
	}
}
