// Package tts voice presets for Murf.
package tts

// Voice describes one available synthesis voice.
type Voice struct {
	ID          string `json:"voice_id"`
	Name        string `json:"name"`
	Locale      string `json:"locale"`
	Gender      string `json:"gender"`
	Description string `json:"description,omitempty"`
}

// MurfVoices is the catalog of supported Murf voices served by the
// voices endpoint. Any voice ID not listed here is passed through to the
// API unchanged.
var MurfVoices = []Voice{
	{ID: "en-US-natalie", Name: "Natalie", Locale: "en-US", Gender: "female", Description: "American female, warm conversational"},
	{ID: "en-US-amara", Name: "Amara", Locale: "en-US", Gender: "female", Description: "American female, expressive"},
	{ID: "en-US-miles", Name: "Miles", Locale: "en-US", Gender: "male", Description: "American male, deep"},
	{ID: "en-US-terrell", Name: "Terrell", Locale: "en-US", Gender: "male", Description: "American male, calm"},
	{ID: "en-US-julia", Name: "Julia", Locale: "en-US", Gender: "female", Description: "American female, soft"},
	{ID: "en-UK-ruby", Name: "Ruby", Locale: "en-UK", Gender: "female", Description: "British female, warm"},
	{ID: "en-UK-theo", Name: "Theo", Locale: "en-UK", Gender: "male", Description: "British male, crisp"},
	{ID: "en-AU-kylie", Name: "Kylie", Locale: "en-AU", Gender: "female", Description: "Australian female, bright"},
	{ID: "es-ES-elvira", Name: "Elvira", Locale: "es-ES", Gender: "female", Description: "Spanish female, clear"},
	{ID: "fr-FR-adelie", Name: "Adelie", Locale: "fr-FR", Gender: "female", Description: "French female, smooth"},
}

// DefaultMurfVoice is the default voice ID.
const DefaultMurfVoice = "en-US-natalie"

// LookupMurfVoice returns the catalog entry for a voice ID.
func LookupMurfVoice(id string) (Voice, bool) {
	for _, v := range MurfVoices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// IsMurfVoice returns true if the ID is in the catalog.
func IsMurfVoice(id string) bool {
	_, ok := LookupMurfVoice(id)
	return ok
}
