package validate

import (
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/todolist/internal/model"
)

// imageTypes are the formats the image rule accepts.
var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/bmp",
	"image/gif",
	"image/svg+xml",
	"image/webp",
}

// SniffImage detects the upload's type from its leading bytes rather than
// the client-supplied filename or Content-Type header. ok reports whether
// it is one of the accepted image formats.
//
// The content is rewound afterwards, so the caller can stream it from the
// start.
func SniffImage(u *model.Upload) (mime *mimetype.MIME, ok bool, err error) {
	if u == nil || u.Content == nil {
		return nil, false, nil
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("rewinding upload: %w", err)
	}

	mime, err = mimetype.DetectReader(u.Content)
	if err != nil {
		return nil, false, fmt.Errorf("detecting content type: %w", err)
	}
	if _, err := u.Content.Seek(0, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("rewinding upload: %w", err)
	}

	for m := mime; m != nil; m = m.Parent() {
		for _, t := range imageTypes {
			if m.Is(t) {
				return mime, true, nil
			}
		}
	}
	return mime, false, nil
}
