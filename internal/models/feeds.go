package models

import "encoding/json"

// APOD is NASA's Astronomy Picture of the Day
type APOD struct {
	Date           string `json:"date"`
	Title          string `json:"title"`
	Explanation    string `json:"explanation"`
	URL            string `json:"url"`
	HDURL          string `json:"hdurl,omitempty"`
	MediaType      string `json:"media_type"`
	Copyright      string `json:"copyright,omitempty"`
	ServiceVersion string `json:"service_version,omitempty"`
}

// NEOFeed is the subset of NASA's near-earth-object feed the stats endpoint consumes
type NEOFeed struct {
	ElementCount     int                          `json:"element_count"`
	NearEarthObjects map[string][]json.RawMessage `json:"near_earth_objects"`
}

// AsteroidData is the factual part of the stats payload
type AsteroidData struct {
	Count   int               `json:"count"`
	Details []json.RawMessage `json:"details"`
}

// Stats is the combined stats payload returned to clients
type Stats struct {
	AsteroidData   *AsteroidData `json:"asteroid_data"`
	LaunchesByYear any           `json:"launches_by_year"`
	MissionsByType any           `json:"missions_by_type"`
}

// MemoryCard is a static card used by the memory game
type MemoryCard struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// ChatReply is the chat endpoint payload
type ChatReply struct {
	Response string `json:"response"`
	HTML     string `json:"html"`
}
