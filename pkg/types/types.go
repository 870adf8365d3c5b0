// Package types defines the shared data model used across all irum packages.
//
// These types are the lingua franca between the conversion and history
// providers, the local store and the session controller. Each package defines
// its own internal types; cross-cutting structures live here to avoid circular
// imports.
package types

import (
	"encoding/json"
	"strings"
	"time"
)

// Candidate is a single localized-name suggestion returned by the
// recommendation service for one English name. Candidates are immutable once
// received and live as long as the conversion response that produced them.
type Candidate struct {
	// LocalizedName is the suggested name in Hangul (e.g., "하린").
	LocalizedName string `json:"localizedName"`

	// Meaning is a short human-readable gloss of the name.
	Meaning string `json:"meaning"`

	// EraScore is the trend score of the name for the current era. Higher is
	// more fashionable. The scale is defined by the service.
	EraScore float64 `json:"eraScore"`
}

// candidateWire mirrors the service payload, which historically names the
// localized field koreanName.
type candidateWire struct {
	LocalizedName string  `json:"localizedName"`
	KoreanName    string  `json:"koreanName"`
	Meaning       string  `json:"meaning"`
	EraScore      float64 `json:"eraScore"`
}

// UnmarshalJSON accepts both localizedName and koreanName for the localized
// field. localizedName wins when both are present.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var w candidateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.LocalizedName = w.LocalizedName
	if c.LocalizedName == "" {
		c.LocalizedName = w.KoreanName
	}
	c.Meaning = w.Meaning
	c.EraScore = w.EraScore
	return nil
}

// SavedEntry is one name the user chose to keep. It is a snapshot of the
// selected [Candidate] plus the English name it was generated for.
type SavedEntry struct {
	// EnglishName is the raw input text at save time (not trimmed).
	EnglishName string `json:"englishName"`

	LocalizedName string  `json:"localizedName"`
	Meaning       string  `json:"meaning"`
	EraScore      float64 `json:"eraScore"`

	// SavedAt is the wall-clock time the entry was created.
	SavedAt time.Time `json:"savedAt"`

	// RemoteID is the id assigned by the remote history store. Empty until
	// (and unless) the remote save call succeeds and reports an id.
	RemoteID string `json:"remoteId,omitempty"`
}

// Key returns the deduplication key of e: the trimmed, lower-cased English
// name and the exact localized name.
func (e SavedEntry) Key() EntryKey {
	return MakeKey(e.EnglishName, e.LocalizedName)
}

// EntryKey identifies a saved entry for deduplication purposes.
type EntryKey struct {
	EnglishName   string
	LocalizedName string
}

// MakeKey builds the [EntryKey] for an English/localized name pair.
func MakeKey(englishName, localizedName string) EntryKey {
	return EntryKey{
		EnglishName:   strings.ToLower(strings.TrimSpace(englishName)),
		LocalizedName: localizedName,
	}
}

// SavedList is the ordered (newest first) collection of saved entries.
// No two entries share the same [EntryKey].
type SavedList []SavedEntry

// IndexOf returns the index of the entry with key k, or -1.
func (l SavedList) IndexOf(k EntryKey) int {
	for i, e := range l {
		if e.Key() == k {
			return i
		}
	}
	return -1
}

// Clone returns a copy of l that shares no backing array with it.
// A nil list clones to an empty, non-nil list.
func (l SavedList) Clone() SavedList {
	out := make(SavedList, len(l))
	copy(out, l)
	return out
}
