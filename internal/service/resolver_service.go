// internal/service/resolver_service.go
package service

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/civicdesk/correspondence-backend/internal/model"
	"github.com/civicdesk/correspondence-backend/internal/repository"
)

// Resolution buckets a message's sender: known (exact contact match),
// has_address (postal address detected in the body), or no_address.
// Advisory only: it affects queue priority and UI affordances, never writes.
type Resolution struct {
	Bucket          model.Bucket `json:"bucket"`
	ConstituentID   *uuid.UUID   `json:"constituent_id,omitempty"`
	DetectedAddress string       `json:"detected_address,omitempty"`
}

type ResolverService struct {
	Constituents repository.ConstituentRepositoryInterface
}

// UK postcode, e.g. "SW1A 0AA". False positives are acceptable here.
var postcodeRe = regexp.MustCompile(`(?i)\b[A-Z]{1,2}[0-9][A-Z0-9]?\s*[0-9][A-Z]{2}\b`)

// House number followed by a street designator, e.g. "12 Mill Lane".
var streetRe = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z'\-]+\s+(street|st|road|rd|avenue|ave|lane|ln|drive|close|court|crescent|gardens|way|place|terrace|row)\b`)

func (s *ResolverService) Resolve(ctx context.Context, senderEmail, bodyText string) (*Resolution, error) {
	if senderEmail != "" {
		c, err := s.Constituents.FindByEmail(ctx, senderEmail)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return &Resolution{Bucket: model.BucketKnown, ConstituentID: &c.ID}, nil
		}
	}

	if addr := detectPostalAddress(bodyText); addr != "" {
		return &Resolution{Bucket: model.BucketHasAddress, DetectedAddress: addr}, nil
	}

	return &Resolution{Bucket: model.BucketNoAddress}, nil
}

func detectPostalAddress(body string) string {
	if m := postcodeRe.FindString(body); m != "" {
		return m
	}
	return streetRe.FindString(body)
}
