// Package export triggers the ledger's export endpoints and stores downloaded
// files in a Sink. File contents are passed through untouched.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/dafibh/fortuna/fortuna-client/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exporter is the part of the ledger client that generates exports
type Exporter interface {
	DownloadExport(ctx context.Context, kind domain.Kind) (*ledger.Export, error)
	EmailExport(ctx context.Context, kind domain.Kind) error
}

// Result describes a stored export
type Result struct {
	Kind     domain.Kind `json:"kind"`
	Filename string      `json:"filename"`
	Location string      `json:"location"`
	URL      string      `json:"url,omitempty"`
	Size     int         `json:"size"`
}

// Service handles export downloads and email triggers
type Service struct {
	ledger Exporter
	sink   Sink
	logger zerolog.Logger
}

// NewService creates a new export Service
func NewService(ledger Exporter, sink Sink) *Service {
	return &Service{
		ledger: ledger,
		sink:   sink,
		logger: log.With().Str("component", "export").Logger(),
	}
}

// Download fetches the export for kind and saves it to the sink
func (s *Service) Download(ctx context.Context, kind domain.Kind) (*Result, error) {
	exp, err := s.ledger.DownloadExport(ctx, kind)
	if err != nil {
		return nil, s.fail(kind, "download", err)
	}

	location, err := s.sink.Save(ctx, ObjectKey(kind, exp.Filename), exp.ContentType, exp.Body)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to store export")
		return nil, fmt.Errorf("failed to store %s export: %w", kind, err)
	}

	result := &Result{Kind: kind, Filename: exp.Filename, Location: location, Size: len(exp.Body)}
	if linker, ok := s.sink.(Linker); ok {
		url, err := linker.Link(ctx, location)
		if err != nil {
			s.logger.Warn().Err(err).Str("location", location).Msg("Failed to create export link")
		} else {
			result.URL = url
		}
	}

	s.logger.Info().Str("kind", string(kind)).Str("location", location).Int("size", result.Size).Msg("Export stored")
	return result, nil
}

// Email asks the ledger to email the export for kind. Only success or failure is reported.
func (s *Service) Email(ctx context.Context, kind domain.Kind) error {
	if err := s.ledger.EmailExport(ctx, kind); err != nil {
		return s.fail(kind, "email", err)
	}
	return nil
}

func (s *Service) fail(kind domain.Kind, op string, err error) error {
	fallback := fmt.Sprintf("Failed to %s %s", op, kind)
	var tErr *domain.TransportError
	if errors.As(err, &tErr) {
		tErr = tErr.WithFallback(fallback)
	} else {
		tErr = &domain.TransportError{Message: fallback, Err: err}
	}
	s.logger.Warn().Err(err).Str("kind", string(kind)).Str("op", op).Msg("Export request failed")
	return tErr
}
