package domain

// NoticeKind classifies user-visible notices raised by the core.
type NoticeKind string

const (
	NoticePermissionDenied NoticeKind = "permission_denied"
	NoticeLocationError    NoticeKind = "location_error"
	NoticeFallbackData     NoticeKind = "fallback_data"
	NoticeVoiceGuidance    NoticeKind = "voice_guidance"
	NoticeLanguageFallback NoticeKind = "language_fallback"
)

// A message the presentation layer shows to the user.
// Notices are informational; none of them represents a fatal condition.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}
