package resource

import (
	"github.com/FocuswithJustin/CedarPress/core/discovery"
	"github.com/FocuswithJustin/CedarPress/core/errors"
	"github.com/FocuswithJustin/CedarPress/core/rclink"
	"github.com/FocuswithJustin/CedarPress/core/usfm"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// scripture parses USFM source into one rendered book and its sliced
// chapter/verse payload. It covers every scripture-shaped resource type:
// literal and dynamic translations and their publisher aliases.
type scripture struct {
	res     *Resource
	book    *usfm.Book
	payload *usfm.BookPayload
}

func newScripture(r *Resource) variant { return &scripture{res: r} }

func (s *scripture) load(reg *rclink.Registry) error {
	req := s.res.req
	files, err := discovery.ScriptureFiles(s.res.root, req.Code)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.NewNotFound(req.Spec())
	}
	s.res.markDiscovered(len(files))

	// Prefer the file whose parsed \id matches the requested book; the
	// name filter alone can pull in sibling books ("gen" matches a file
	// named 01-GEN-and-notes.usfm as well as one holding another book).
	for _, path := range files {
		book, err := usfm.Parse(path)
		if err != nil {
			logging.Warn("unparseable scripture file", "path", path, "error", err)
			continue
		}
		if s.book == nil || book.Code == req.Code {
			s.book = book
		}
		if book.Code == req.Code {
			break
		}
	}
	if s.book == nil {
		return errors.NewParse("usfm", s.res.root, errors.Wrap(errors.ErrParse, "no parseable book"))
	}

	payload, err := s.book.Payload()
	if err != nil {
		return err
	}
	s.payload = payload
	return nil
}

// Scripture text carries no locators; both passes are structural no-ops.
func (s *scripture) resolve(*rclink.Registry) error { return nil }

func (s *scripture) render(*rclink.Registry) (string, error) {
	if s.book == nil {
		return "", nil
	}
	return s.book.HTML, nil
}
