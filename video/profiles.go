package video

// RenditionHeights is the fixed ladder every source is transcoded to,
// ascending. Playback clients pick between them via the master playlist.
var RenditionHeights = []int{120, 360, 720, 1080}

// EncodingProfile carries the rate-control parameters for one rendition
// height. Values are kbps.
type EncodingProfile struct {
	Height  int
	Bitrate int
	Maxrate int
	Bufsize int
}

var profilesByHeight = map[int]EncodingProfile{
	120:  {Height: 120, Bitrate: 100, Maxrate: 150, Bufsize: 300},
	360:  {Height: 360, Bitrate: 600, Maxrate: 900, Bufsize: 1800},
	720:  {Height: 720, Bitrate: 1800, Maxrate: 2500, Bufsize: 5000},
	1080: {Height: 1080, Bitrate: 3500, Maxrate: 5000, Bufsize: 10000},
}

// ProfileForHeight returns the ladder entry for the height, or the
// fallback parameters for heights outside the ladder.
func ProfileForHeight(height int) EncodingProfile {
	if p, ok := profilesByHeight[height]; ok {
		return p
	}
	return EncodingProfile{Height: height, Bitrate: 1000, Maxrate: 1200, Bufsize: 2000}
}

// DeclaredBandwidth is the legacy BANDWIDTH heuristic used in the
// master playlist: height * 2 * 1000 bits per second.
func (p EncodingProfile) DeclaredBandwidth() int {
	return p.Height * 1000 * 2
}
