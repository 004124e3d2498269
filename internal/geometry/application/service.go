package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	geometry "borehole-geometry/internal/geometry/domain"
	"borehole-geometry/internal/observability/metrics"
)

// SurveyParser reads an uploaded survey file into validated rows.
type SurveyParser interface {
	Parse(format geometry.SurveyFormat, filename string, data []byte) ([]geometry.SurveyRow, error)
}

// EventPublisher publishes geometry events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// GeometryService handles borehole geometry use cases.
type GeometryService struct {
	repo           geometry.StationRepository
	elevations     geometry.ElevationReader
	guard          geometry.MutationGuard
	parser         SurveyParser
	publisher      EventPublisher
	clock          Clock
	logger         *log.Logger
	maxUploadBytes int64
}

// ServiceOption configures the service.
type ServiceOption func(*GeometryService)

// WithPublisher sets the event publisher.
func WithPublisher(publisher EventPublisher) ServiceOption {
	return func(s *GeometryService) {
		s.publisher = publisher
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *GeometryService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *GeometryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxUploadBytes limits the size of an uploaded file. Zero disables the limit.
func WithMaxUploadBytes(limit int64) ServiceOption {
	return func(s *GeometryService) {
		s.maxUploadBytes = limit
	}
}

// NewGeometryService constructs the service.
func NewGeometryService(
	repo geometry.StationRepository,
	elevations geometry.ElevationReader,
	guard geometry.MutationGuard,
	parser SurveyParser,
	opts ...ServiceOption,
) (*GeometryService, error) {
	if repo == nil {
		return nil, errors.New("geometry service: nil station repository")
	}
	if elevations == nil {
		return nil, errors.New("geometry service: nil elevation reader")
	}
	if guard == nil {
		return nil, errors.New("geometry service: nil mutation guard")
	}
	if parser == nil {
		return nil, errors.New("geometry service: nil parser")
	}
	s := &GeometryService{
		repo:       repo,
		elevations: elevations,
		guard:      guard,
		parser:     parser,
		clock:      SystemClock{},
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListFormats returns the accepted survey formats.
func (s *GeometryService) ListFormats() []geometry.SurveyFormat {
	return geometry.SupportedFormats()
}

// Upload parses a survey file and replaces the borehole's geometry with it.
// Nothing is written unless the whole file is valid.
func (s *GeometryService) Upload(ctx context.Context, boreholeID, filename string, data []byte, formatName string) (int, error) {
	start := s.clock.Now()
	if boreholeID == "" {
		return 0, geometry.ErrEmptyBoreholeID
	}

	format, err := geometry.ParseFormat(formatName)
	if err != nil {
		metrics.ObserveUpload("unknown", metrics.ResultInvalid, 0, s.clock.Now().Sub(start))
		return 0, err
	}
	label := string(format)

	allowed, err := s.guard.CanMutate(ctx, boreholeID)
	if err != nil {
		metrics.ObserveUpload(label, metrics.ResultError, 0, s.clock.Now().Sub(start))
		return 0, err
	}
	if !allowed {
		metrics.ObserveUpload(label, metrics.ResultDenied, 0, s.clock.Now().Sub(start))
		return 0, geometry.ErrMutationDenied
	}

	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		verr := &geometry.ValidationError{}
		verr.AddHeader(fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
		metrics.ObserveUpload(label, metrics.ResultInvalid, 0, s.clock.Now().Sub(start))
		return 0, verr
	}

	rows, err := s.parser.Parse(format, filename, data)
	if err != nil {
		metrics.ObserveUpload(label, resultFor(err), 0, s.clock.Now().Sub(start))
		return 0, err
	}
	stations, err := format.Stations(rows)
	if err != nil {
		metrics.ObserveUpload(label, resultFor(err), 0, s.clock.Now().Sub(start))
		return 0, err
	}
	stations = geometry.WithBorehole(stations, boreholeID)

	if err := s.repo.ReplaceAll(ctx, boreholeID, stations); err != nil {
		metrics.ObserveUpload(label, metrics.ResultError, 0, s.clock.Now().Sub(start))
		return 0, fmt.Errorf("geometry: replace stations: %w", err)
	}
	metrics.ObserveUpload(label, metrics.ResultSuccess, len(stations), s.clock.Now().Sub(start))

	s.publish(ctx, GeometryReplaced{
		BoreholeID:   boreholeID,
		Format:       label,
		StationCount: len(stations),
		OccurredAt:   s.clock.Now().UTC(),
	})
	return len(stations), nil
}

// Delete removes all stations of the borehole.
func (s *GeometryService) Delete(ctx context.Context, boreholeID string) (int, error) {
	if boreholeID == "" {
		return 0, geometry.ErrEmptyBoreholeID
	}
	allowed, err := s.guard.CanMutate(ctx, boreholeID)
	if err != nil {
		metrics.IncDelete(metrics.ResultError)
		return 0, err
	}
	if !allowed {
		metrics.IncDelete(metrics.ResultDenied)
		return 0, geometry.ErrMutationDenied
	}
	removed, err := s.repo.DeleteByBorehole(ctx, boreholeID)
	if err != nil {
		metrics.IncDelete(metrics.ResultError)
		return 0, fmt.Errorf("geometry: delete stations: %w", err)
	}
	metrics.IncDelete(metrics.ResultSuccess)

	s.publish(ctx, GeometryDeleted{
		BoreholeID: boreholeID,
		Removed:    removed,
		OccurredAt: s.clock.Now().UTC(),
	})
	return removed, nil
}

// Stations returns the stored trajectory ordered by MD.
func (s *GeometryService) Stations(ctx context.Context, boreholeID string) ([]geometry.Station, error) {
	if boreholeID == "" {
		return nil, geometry.ErrEmptyBoreholeID
	}
	return s.repo.ListByBorehole(ctx, boreholeID)
}

// TVD converts measured depth to true vertical depth. The borehole must exist.
func (s *GeometryService) TVD(ctx context.Context, boreholeID string, md float64) (float64, error) {
	if !finite(md) {
		metrics.IncConversion("tvd", metrics.ResultError)
		return 0, geometry.ErrInvalidDepth
	}
	stations, _, err := s.snapshot(ctx, boreholeID)
	if err != nil {
		metrics.IncConversion("tvd", metrics.ResultError)
		return 0, err
	}
	metrics.IncConversion("tvd", metrics.ConversionValue)
	return geometry.TVD(stations, md), nil
}

// MASL converts measured depth to elevation above sea level. A nil result means no value.
func (s *GeometryService) MASL(ctx context.Context, boreholeID string, md float64) (*float64, error) {
	if !finite(md) {
		metrics.IncConversion("masl", metrics.ResultError)
		return nil, geometry.ErrInvalidDepth
	}
	stations, reference, err := s.snapshot(ctx, boreholeID)
	if err != nil {
		metrics.IncConversion("masl", metrics.ResultError)
		return nil, err
	}
	value := geometry.MASL(stations, reference, md)
	metrics.IncConversion("masl", conversionResult(value))
	return value, nil
}

// MDFromMASL converts elevation above sea level back to measured depth. A nil result means no value.
func (s *GeometryService) MDFromMASL(ctx context.Context, boreholeID string, masl float64) (*float64, error) {
	if !finite(masl) {
		metrics.IncConversion("md", metrics.ResultError)
		return nil, geometry.ErrInvalidDepth
	}
	stations, reference, err := s.snapshot(ctx, boreholeID)
	if err != nil {
		metrics.IncConversion("md", metrics.ResultError)
		return nil, err
	}
	value := geometry.MDFromMASL(stations, reference, masl)
	metrics.IncConversion("md", conversionResult(value))
	return value, nil
}

func (s *GeometryService) snapshot(ctx context.Context, boreholeID string) ([]geometry.Station, *float64, error) {
	reference, err := s.elevations.ReferenceElevation(ctx, boreholeID)
	if err != nil {
		return nil, nil, err
	}
	stations, err := s.Stations(ctx, boreholeID)
	if err != nil {
		return nil, nil, err
	}
	return stations, reference, nil
}

func (s *GeometryService) publish(ctx context.Context, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("geometry: publish %T: %v", event, err)
	}
}

func resultFor(err error) string {
	var verr *geometry.ValidationError
	if errors.As(err, &verr) || errors.Is(err, geometry.ErrInvalidFormat) {
		return metrics.ResultInvalid
	}
	return metrics.ResultError
}

func conversionResult(value *float64) string {
	if value == nil {
		return metrics.ConversionNone
	}
	return metrics.ConversionValue
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
