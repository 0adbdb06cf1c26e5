package tagging

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/storage"
)

// ErrUnsupportedFormat is returned for containers without a tag writer.
var ErrUnsupportedFormat = errors.New("tagging not supported for this format")

// TagFile writes track metadata to the audio file at filePath. A cover image
// left next to the file (same base name, .jpg) is embedded and then removed.
func TagFile(filePath string, track domain.Track) error {
	ext := strings.ToLower(filepath.Ext(filePath))
	cover := CoverPath(filePath)
	art, _ := os.ReadFile(cover)

	var err error
	switch ext {
	case constants.ExtFLAC:
		err = tagFLAC(filePath, track, art)
	case constants.ExtMP3:
		err = tagMP3(filePath, track, art)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	// The cover is only a carrier for embedding; never leave it in the folder.
	_ = storage.RemoveFile(cover)
	return err
}

// CoverPath is where the fetch tool leaves the thumbnail for filePath.
func CoverPath(filePath string) string {
	return strings.TrimSuffix(filePath, filepath.Ext(filePath)) + constants.ExtJPG
}

// tagFLAC replaces the Vorbis comment block and adds a picture block when
// art is present. The file is rewritten through a temp file and renamed.
func tagFLAC(filePath string, track domain.Track, art []byte) error {
	f, err := flac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to open FLAC file: %w", err)
	}

	kept := f.Meta[:0]
	for _, b := range f.Meta {
		if b.Type == flac.VorbisComment || (len(art) > 0 && b.Type == flac.Picture) {
			continue
		}
		kept = append(kept, b)
	}
	f.Meta = kept

	vc, err := newVorbisComment(track)
	if err != nil {
		return err
	}
	block := vc.Marshal()
	f.Meta = append(f.Meta, &block)

	if len(art) > 0 {
		// An undecodable cover is dropped rather than failing the tag write.
		if pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", art, detectMIME(art)); err == nil {
			picBlock := pic.Marshal()
			f.Meta = append(f.Meta, &picBlock)
		}
	}

	tmpPath := filePath + ".tagging"
	if err := f.Save(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write FLAC file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace original FLAC file: %w", err)
	}
	return nil
}

func newVorbisComment(track domain.Track) (*flacvorbis.MetaDataBlockVorbisComment, error) {
	vc := flacvorbis.New()
	vc.Vendor = constants.AppName

	var errs []error
	add := func(name, value string) {
		if value != "" {
			errs = append(errs, vc.Add(name, value))
		}
	}

	add(flacvorbis.FIELD_TITLE, track.Title)
	// Multiple artists get individual ARTIST fields.
	if len(track.Artists) > 0 {
		for _, a := range track.Artists {
			add(flacvorbis.FIELD_ARTIST, a)
		}
	} else {
		add(flacvorbis.FIELD_ARTIST, track.PrimaryArtist)
	}
	add(flacvorbis.FIELD_ALBUM, track.Album)
	add(flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(track.Number()))
	add("SOURCE_URI", track.URI)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build vorbis comment: %w", err)
	}
	return vc, nil
}

// tagMP3 writes ID3v2.4 tags to an MP3 file.
func tagMP3(filePath string, track domain.Track, art []byte) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetTitle(track.Title)
	if len(track.Artists) > 1 {
		tag.AddTextFrame(tag.CommonID("Lead artist/Lead performer/Soloist/Performing group"), tag.DefaultEncoding(), strings.Join(track.Artists, "\x00"))
	} else {
		tag.SetArtist(track.PrimaryArtist)
	}
	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), strconv.Itoa(track.Number()))

	if track.URI != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: "SOURCE_URI",
			Value:       track.URI,
		})
	}

	if len(art) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMIME(art),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     art,
		})
	}

	return tag.Save()
}

// detectMIME sniffs the image type so PNG covers aren't labelled as JPEG.
func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}
