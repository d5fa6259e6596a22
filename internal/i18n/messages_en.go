package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Queue notices
	"queue.track_added":   "🎵 %s added %s - %s to the queue",
	"queue.track_skipped": "⏭️ Skipped: %s - %s",
	"queue.now_playing":   "▶️ Now playing: %s - %s",
	"queue.empty":         "The queue is empty. Add a song to get the party going!",

	// Playback notices
	"player.not_connected":   "No active Spotify device found. Open Spotify and try again.",
	"player.fallback_video":  "Playing %s - %s from the fallback source",
	"player.start_failed":    "Couldn't start playback. Please try again.",

	// Errors
	"error.search_failed":  "Couldn't search Spotify. Please try again.",
	"error.flood_limited":  "Easy there! You're adding songs too fast.",
	"error.generic":        "Something went wrong. Please try again.",
	"error.not_authorized": "Link your Spotify account first.",

	// Reactions
	"reaction.added": "%s reacted with %s",
}
