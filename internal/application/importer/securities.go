package importer

import (
	"context"
	"strings"

	"ledgersync-backend/internal/domain"
)

// ResolveSecurity finds the security for ticker, creating it when absent. The first
// security carrying a ticker wins; ticker collisions across exchanges are not disambiguated.
func (s *Service) ResolveSecurity(ctx context.Context, ticker, name string) (*domain.Security, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, ErrSecurityRequired
	}
	var sec domain.Security
	err := s.DB.WithContext(ctx).
		Where(domain.Security{Ticker: ticker}).
		Attrs(domain.Security{Name: strings.TrimSpace(name)}).
		Order("created_at ASC").
		FirstOrCreate(&sec).Error
	if err != nil {
		return nil, err
	}
	return &sec, nil
}
