// internal/catalog/testdata.go
package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bookshop/pkg/logging"
)

// ProfileTestData enables LoadTestData at startup.
const ProfileTestData = "testdata"

// LoadTestData empties the catalog and adds two sample books.
func LoadTestData(ctx context.Context, svc Service, books Repository, logger zerolog.Logger) error {
	if err := books.DeleteAll(ctx); err != nil {
		return fmt.Errorf("empty catalog: %w", err)
	}

	samples := []BookInput{
		sample("1234567891", "Northern Lights", "Lyra Silverstar", "9.90", "Polarsophia"),
		sample("1234567892", "Polar Journey", "Iorek Polarson", "12.90", "Polarsophia1"),
	}
	for _, in := range samples {
		if _, err := svc.AddBookToCatalog(ctx, in); err != nil {
			return fmt.Errorf("add %s: %w", in.ISBN, err)
		}
		logger.Debug().Str(logging.ISBN, in.ISBN).Msg("test book loaded")
	}
	logger.Info().Int("books", len(samples)).Msg("test data loaded")
	return nil
}

func sample(isbn, title, author, price, publisher string) BookInput {
	p := decimal.RequireFromString(price)
	return BookInput{ISBN: isbn, Title: title, Author: author, Price: &p, Publisher: &publisher}
}
