package service

import (
	"net/url"
	"path"
	"strings"

	"github.com/maheshrc27/tattle-publisher/internal/models"
)

type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
)

type MediaItem struct {
	URL  string
	Kind MediaKind
}

type Strategy string

const (
	StrategySingleImage Strategy = "single_image"
	StrategySingleVideo Strategy = "single_video"
	StrategyCarousel    Strategy = "carousel"
)

var videoExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
}

// MediaKindOf infers the kind from the URI path suffix. Anything that is not a
// known video extension is treated as an image.
func MediaKindOf(uri string) MediaKind {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	if _, ok := videoExtensions[strings.ToLower(path.Ext(p))]; ok {
		return MediaVideo
	}
	return MediaImage
}

// ClassifyMedia returns the publish strategy and the media items in their
// original order.
func ClassifyMedia(media []string) (Strategy, []MediaItem, error) {
	if len(media) == 0 {
		return "", nil, ErrEmptyMedia
	}
	if len(media) > models.MaxMediaPerPost {
		return "", nil, ErrTooManyMedia
	}

	items := make([]MediaItem, 0, len(media))
	for _, uri := range media {
		items = append(items, MediaItem{URL: uri, Kind: MediaKindOf(uri)})
	}

	if len(items) > 1 {
		return StrategyCarousel, items, nil
	}
	if items[0].Kind == MediaVideo {
		return StrategySingleVideo, items, nil
	}
	return StrategySingleImage, items, nil
}
