package metadata

import (
	"errors"
	"math"
	"time"

	"github.com/audiobook-dl/audiobook-dl/audiobook"
	"github.com/audiobook-dl/audiobook-dl/filesystem"
	"github.com/zhaarey/go-mp4tag"
)

// errVirtualFs is returned outside the OS filesystem: the atom writer opens files by path itself.
var errVirtualFs = errors.New("mp4 tags can only be written to files on disk")

func writeMP4(path string, tags *mp4tag.MP4Tags) error {
	if !filesystem.IsOs() {
		return errVirtualFs
	}

	file, err := mp4tag.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return file.Write(tags, []string{})
}

// mp4Tags maps book metadata onto iTunes atoms. A non-nil cover only sets the artwork.
func mp4Tags(meta audiobook.Metadata, cover *audiobook.Cover) *mp4tag.MP4Tags {
	if cover != nil {
		return &mp4tag.MP4Tags{
			Pictures: []*mp4tag.MP4Picture{{Data: cover.Image}},
		}
	}

	custom := map[string]string{}
	set := func(k, v string) {
		if v != "" {
			custom[k] = v
		}
	}

	set("series", meta.Series)
	set("isbn", meta.ISBN)
	set("publisher", meta.Publisher)
	set("Language", meta.Language)
	set("URL", meta.ScrapeURL)
	set("NARRATOR", meta.Narrator())
	set("DESCRIPTION", meta.Description)

	tags := &mp4tag.MP4Tags{
		Title:       meta.Title,
		Album:       meta.Title,
		Artist:      meta.Author(),
		AlbumArtist: meta.Author(),
		Composer:    meta.Narrator(),
		CustomGenre: meta.Genre(),
		Publisher:   meta.Publisher,
		Custom:      custom,
	}

	if order, ok := meta.Order(); ok {
		custom["mvin"] = order
		value := meta.SeriesOrder.OrEmpty()
		if whole, frac := math.Modf(value); frac == 0 && whole > 0 && whole <= math.MaxInt16 {
			tags.TrackNumber = int16(whole)
		}
	}
	if date, ok := meta.ReleaseDate.Get(); ok {
		tags.Date = date.Format(time.DateOnly)
	}

	return tags
}
