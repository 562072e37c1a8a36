package domain

import "regexp"

// Canonical YouTube URL shapes the bot accepts: watch pages, youtu.be
// short links, shorts and live streams. Anything else is rejected before
// the resolver is ever invoked.
var sourceURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.|m\.)?youtube\.com/watch\?[^\s]*v=[\w-]{6,}`),
	regexp.MustCompile(`^https?://youtu\.be/[\w-]{6,}`),
	regexp.MustCompile(`^https?://(www\.|m\.)?youtube\.com/shorts/[\w-]{6,}`),
	regexp.MustCompile(`^https?://(www\.|m\.)?youtube\.com/live/[\w-]{6,}`),
}

// ValidSourceURL reports whether candidate matches one of the accepted URL
// shapes. Pure match, no network access.
func ValidSourceURL(candidate string) bool {
	for _, re := range sourceURLPatterns {
		if re.MatchString(candidate) {
			return true
		}
	}
	return false
}
