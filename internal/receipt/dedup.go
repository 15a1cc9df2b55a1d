package receipt

import (
	"errors"
	"log/slog"
)

var (
	// ErrDuplicateFilename is returned when a receipt with the same filename is already stored
	ErrDuplicateFilename = errors.New("a file with this name has already been uploaded")
	// ErrDuplicateContent is returned when a receipt with the same vendor, date and amount is already stored
	ErrDuplicateContent = errors.New("a receipt with these details already exists")
)

// Admit decides whether candidate may be inserted given the stored receipts
// sharing its filename and its (vendor, date, amount) triple.
// The filename check runs first so it determines the reported reason.
func Admit(candidate *Receipt, sameFilename, sameContent []*Receipt) error {
	for _, existing := range sameFilename {
		if existing.Filename == candidate.Filename {
			slog.Info("Rejected duplicate filename",
				"filename", candidate.Filename,
				"existing_id", existing.ID,
			)
			return ErrDuplicateFilename
		}
	}

	for _, existing := range sameContent {
		if existing.Vendor == candidate.Vendor &&
			existing.Date == candidate.Date &&
			existing.Amount == candidate.Amount {
			slog.Info("Rejected duplicate content",
				"filename", candidate.Filename,
				"vendor", candidate.Vendor,
				"date", candidate.Date,
				"amount", candidate.Amount,
				"existing_id", existing.ID,
			)
			return ErrDuplicateContent
		}
	}

	return nil
}
