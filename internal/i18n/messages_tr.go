package i18n

// turkishMessages contains all Turkish translations.
var turkishMessages = map[string]string{
	// Queue notices
	"queue.track_added":   "🎵 %s kuyruğa %s - %s ekledi",
	"queue.track_skipped": "⏭️ Atlandı: %s - %s",
	"queue.now_playing":   "▶️ Şimdi çalıyor: %s - %s",
	"queue.empty":         "Kuyruk boş. Partiyi başlatmak için bir şarkı ekle!",

	// Playback notices
	"player.not_connected":   "Aktif Spotify cihazı bulunamadı. Spotify'ı açıp tekrar dene.",
	"player.fallback_video":  "%s - %s yedek kaynaktan çalınıyor",
	"player.start_failed":    "Çalma başlatılamadı. Lütfen tekrar dene.",

	// Errors
	"error.search_failed":  "Spotify'da arama yapılamadı. Lütfen tekrar dene.",
	"error.flood_limited":  "Yavaş ol! Çok hızlı şarkı ekliyorsun.",
	"error.generic":        "Bir şeyler ters gitti. Lütfen tekrar dene.",
	"error.not_authorized": "Önce Spotify hesabını bağla.",

	// Reactions
	"reaction.added": "%s %s ile tepki verdi",
}
