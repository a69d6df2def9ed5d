package backend

import "strings"

// Platform identifies which upstream handles a source URL.
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformTikTok      Platform = "tiktok"
	PlatformFacebook    Platform = "facebook"
	PlatformUnsupported Platform = "unsupported"
)

// platformMarkers is checked in order; the first substring hit wins.
var platformMarkers = []struct {
	platform Platform
	markers  []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformTikTok, []string{"tiktok.com"}},
	{PlatformFacebook, []string{"facebook.com", "fb.watch"}},
}

// ClassifyURL maps a source URL to its platform by substring match.
// It never touches the network.
func ClassifyURL(rawURL string) Platform {
	lower := strings.ToLower(rawURL)
	for _, pm := range platformMarkers {
		for _, m := range pm.markers {
			if strings.Contains(lower, m) {
				return pm.platform
			}
		}
	}
	return PlatformUnsupported
}

// IsYouTubeURL checks if URL is handled by the YouTube branch.
func IsYouTubeURL(rawURL string) bool {
	return ClassifyURL(rawURL) == PlatformYouTube
}
