package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	geometry "borehole-geometry/internal/geometry/domain"
	"borehole-geometry/internal/geometry/infrastructure/memory"
	"borehole-geometry/internal/geometry/parser"
)

type stubGuard struct {
	allow bool
	err   error
	calls int
}

func (g *stubGuard) CanMutate(ctx context.Context, boreholeID string) (bool, error) {
	g.calls++
	return g.allow, g.err
}

type stubElevations struct {
	ref     *float64
	missing bool
}

func (s stubElevations) ReferenceElevation(ctx context.Context, boreholeID string) (*float64, error) {
	if s.missing {
		return nil, geometry.ErrBoreholeNotFound
	}
	return s.ref, nil
}

type countingParser struct {
	inner *parser.Parser
	calls int
}

func (p *countingParser) Parse(format geometry.SurveyFormat, filename string, data []byte) ([]geometry.SurveyRow, error) {
	p.calls++
	return p.inner.Parse(format, filename, data)
}

type recordingPublisher struct {
	events []any
}

func (p *recordingPublisher) Publish(ctx context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

func newTestService(t *testing.T, guard *stubGuard, ref *float64) (*GeometryService, *memory.StationRepository, *countingParser, *recordingPublisher) {
	t.Helper()
	repo := memory.NewStationRepository()
	p := &countingParser{inner: parser.New()}
	pub := &recordingPublisher{}
	svc, err := NewGeometryService(repo, stubElevations{ref: ref}, guard, p, WithPublisher(pub))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, p, pub
}

func xyzFixture(rows int) []byte {
	var b strings.Builder
	b.WriteString("MD_m,X_m,Y_m,Z_m\n")
	for i := 1; i <= rows; i++ {
		depth := float64(i) * 50
		fmt.Fprintf(&b, "%g,0,0,%g\n", depth, depth)
	}
	return []byte(b.String())
}

func TestUpload_XYZScenario(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, pub := newTestService(t, &stubGuard{allow: true}, nil)

	count, err := svc.Upload(ctx, "bh-1", "survey.csv", xyzFixture(20), "XYZ")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if count != 20 {
		t.Fatalf("expected 20 stations, got %d", count)
	}
	stored, _ := repo.ListByBorehole(ctx, "bh-1")
	if len(stored) != 20 || stored[19].Z != 1000 {
		t.Fatalf("unexpected stored stations %+v", stored)
	}
	tvd, err := svc.TVD(ctx, "bh-1", stored[19].MD)
	if err != nil {
		t.Fatalf("tvd: %v", err)
	}
	if math.Abs(tvd-1000) > 1e-6 {
		t.Fatalf("expected tvd 1000, got %v", tvd)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	event, ok := pub.events[0].(GeometryReplaced)
	if !ok || event.StationCount != 20 || event.Format != "XYZ" {
		t.Fatalf("unexpected event %+v", pub.events[0])
	}
}

func TestUpload_AzIncHorizontalRow(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t, &stubGuard{allow: true}, nil)

	data := []byte("MD_m;HAZI;DEVI\n0;0;0\n100;45;45\n200;90;90\n")
	if _, err := svc.Upload(ctx, "bh-1", "survey.csv", data, "azinc"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	stored, _ := repo.ListByBorehole(ctx, "bh-1")
	if len(stored) != 3 {
		t.Fatalf("expected 3 stations, got %d", len(stored))
	}
	last := stored[2]
	if last.DEVI == nil || *last.DEVI != 90 {
		t.Fatalf("expected DEVI 90 at last station, got %+v", last.DEVI)
	}
	if stored[0].Z != 0 || stored[0].X != 0 || stored[0].Y != 0 {
		t.Fatalf("first station must sit at the wellhead: %+v", stored[0])
	}
}

func TestUpload_ReplaceNotMerge(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t, &stubGuard{allow: true}, nil)

	if _, err := svc.Upload(ctx, "bh-1", "a.csv", xyzFixture(5), "XYZ"); err != nil {
		t.Fatalf("upload a: %v", err)
	}
	second := []byte("MD_m,X_m,Y_m,Z_m\n7,0,0,7\n13,0,0,12\n")
	if _, err := svc.Upload(ctx, "bh-1", "b.csv", second, "XYZ"); err != nil {
		t.Fatalf("upload b: %v", err)
	}
	stored, _ := repo.ListByBorehole(ctx, "bh-1")
	if len(stored) != 2 || stored[0].MD != 7 || stored[1].MD != 13 {
		t.Fatalf("expected only the second upload, got %+v", stored)
	}
}

func TestUpload_RowErrorsWriteNothing(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, pub := newTestService(t, &stubGuard{allow: true}, nil)
	if _, err := svc.Upload(ctx, "bh-1", "a.csv", xyzFixture(3), "XYZ"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	bad := []byte("MD_m,X_m,Y_m,Z_m\n1,0,0,1\n2,abc,0,2\n3,0,0,\n")
	_, err := svc.Upload(ctx, "bh-1", "bad.csv", bad, "XYZ")
	var verr *geometry.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Rows) != 2 || len(verr.Rows[2]) != 1 || len(verr.Rows[3]) != 1 {
		t.Fatalf("expected errors on rows 2 and 3, got %+v", verr.Rows)
	}
	stored, _ := repo.ListByBorehole(ctx, "bh-1")
	if len(stored) != 3 {
		t.Fatalf("previous geometry must survive, got %d stations", len(stored))
	}
	if len(pub.events) != 1 {
		t.Fatalf("failed upload must not publish, got %d events", len(pub.events))
	}
}

func TestUpload_InvalidFormatBeforeGuardAndParse(t *testing.T) {
	guard := &stubGuard{allow: true}
	svc, _, p, _ := newTestService(t, guard, nil)

	_, err := svc.Upload(context.Background(), "bh-1", "a.csv", xyzFixture(2), "LatLon")
	if !errors.Is(err, geometry.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if guard.calls != 0 || p.calls != 0 {
		t.Fatalf("guard and parser must not run, got guard=%d parser=%d", guard.calls, p.calls)
	}
}

func TestUpload_GuardDenied(t *testing.T) {
	ctx := context.Background()
	svc, repo, p, _ := newTestService(t, &stubGuard{allow: false}, nil)

	_, err := svc.Upload(ctx, "bh-1", "a.csv", xyzFixture(2), "XYZ")
	if !errors.Is(err, geometry.ErrMutationDenied) {
		t.Fatalf("expected ErrMutationDenied, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("parser must not run when denied")
	}
	if stored, _ := repo.ListByBorehole(ctx, "bh-1"); len(stored) != 0 {
		t.Fatalf("nothing may be written, got %+v", stored)
	}
}

func TestUpload_GuardError(t *testing.T) {
	boom := errors.New("boom")
	svc, _, _, _ := newTestService(t, &stubGuard{err: boom}, nil)
	if _, err := svc.Upload(context.Background(), "bh-1", "a.csv", xyzFixture(2), "XYZ"); !errors.Is(err, boom) {
		t.Fatalf("expected guard error, got %v", err)
	}
}

func TestUpload_HeaderOnly(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t, &stubGuard{allow: true}, nil)
	if _, err := svc.Upload(ctx, "bh-1", "a.csv", xyzFixture(4), "XYZ"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	count, err := svc.Upload(ctx, "bh-1", "empty.csv", []byte("MD_m,HAZI,DEVI\n"), "AzInc")
	if err != nil {
		t.Fatalf("header-only upload: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 stations, got %d", count)
	}
	if stored, _ := repo.ListByBorehole(ctx, "bh-1"); len(stored) != 0 {
		t.Fatalf("expected geometry cleared, got %d stations", len(stored))
	}
}

func TestUpload_SizeLimit(t *testing.T) {
	repo := memory.NewStationRepository()
	svc, err := NewGeometryService(repo, stubElevations{}, &stubGuard{allow: true}, parser.New(), WithMaxUploadBytes(10))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Upload(context.Background(), "bh-1", "a.csv", xyzFixture(3), "XYZ")
	var verr *geometry.ValidationError
	if !errors.As(err, &verr) || len(verr.Header) != 1 {
		t.Fatalf("expected header error, got %v", err)
	}
}

func TestDelete_RevertsToIdentity(t *testing.T) {
	ctx := context.Background()
	ref := 250.0
	svc, _, _, pub := newTestService(t, &stubGuard{allow: true}, &ref)

	data := []byte("MD_m;HAZI;DEVI\n0;0;0\n100;90;30\n200;90;60\n")
	if _, err := svc.Upload(ctx, "bh-1", "a.csv", data, "AzInc"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if tvd, _ := svc.TVD(ctx, "bh-1", 150); math.Abs(tvd-150) < 1 {
		t.Fatalf("deviated hole must not be identity, got %v", tvd)
	}

	removed, err := svc.Delete(ctx, "bh-1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if tvd, _ := svc.TVD(ctx, "bh-1", 150); tvd != 150 {
		t.Fatalf("expected identity tvd, got %v", tvd)
	}
	md, err := svc.MDFromMASL(ctx, "bh-1", 100)
	if err != nil || md == nil || *md != 150 {
		t.Fatalf("expected md 150, got %v (%v)", md, err)
	}
	if _, ok := pub.events[len(pub.events)-1].(GeometryDeleted); !ok {
		t.Fatalf("expected GeometryDeleted event, got %T", pub.events[len(pub.events)-1])
	}
}

func TestDelete_Denied(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubGuard{allow: false}, nil)
	if _, err := svc.Delete(context.Background(), "bh-1"); !errors.Is(err, geometry.ErrMutationDenied) {
		t.Fatalf("expected ErrMutationDenied, got %v", err)
	}
}

func TestConversions(t *testing.T) {
	ctx := context.Background()
	ref := 500.0
	svc, _, _, _ := newTestService(t, &stubGuard{allow: true}, &ref)
	data := []byte("MD_m;HAZI;DEVI\n0;0;0\n100;30;20\n250;60;40\n400;60;40\n")
	if _, err := svc.Upload(ctx, "bh-1", "a.csv", data, "AzInc"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := svc.TVD(ctx, "bh-1", -25); err != nil {
		t.Fatalf("tvd above wellhead: %v", err)
	}
	if _, err := svc.TVD(ctx, "bh-1", 5000); err != nil {
		t.Fatalf("tvd beyond survey: %v", err)
	}
	if v, err := svc.MASL(ctx, "bh-1", -25); err != nil || v != nil {
		t.Fatalf("expected no value above wellhead, got %v (%v)", v, err)
	}
	for _, md := range []float64{0, 50, 175, 399} {
		masl, err := svc.MASL(ctx, "bh-1", md)
		if err != nil || masl == nil {
			t.Fatalf("masl(%v): %v (%v)", md, masl, err)
		}
		back, err := svc.MDFromMASL(ctx, "bh-1", *masl)
		if err != nil || back == nil {
			t.Fatalf("md(%v): %v (%v)", *masl, back, err)
		}
		if math.Abs(*back-md) > 1e-6 {
			t.Fatalf("round trip md %v -> %v", md, *back)
		}
	}
	if v, _ := svc.MDFromMASL(ctx, "bh-1", ref+1); v != nil {
		t.Fatalf("expected no value above reference elevation, got %v", *v)
	}
	if _, err := svc.TVD(ctx, "bh-1", math.NaN()); !errors.Is(err, geometry.ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}
}

func TestConversions_UnknownBorehole(t *testing.T) {
	ctx := context.Background()
	svc, err := NewGeometryService(memory.NewStationRepository(), stubElevations{missing: true}, &stubGuard{allow: true}, parser.New())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.TVD(ctx, "bh-missing", 10); !errors.Is(err, geometry.ErrBoreholeNotFound) {
		t.Fatalf("tvd: expected ErrBoreholeNotFound, got %v", err)
	}
	if _, err := svc.MASL(ctx, "bh-missing", 10); !errors.Is(err, geometry.ErrBoreholeNotFound) {
		t.Fatalf("masl: expected ErrBoreholeNotFound, got %v", err)
	}
	if _, err := svc.MDFromMASL(ctx, "bh-missing", 10); !errors.Is(err, geometry.ErrBoreholeNotFound) {
		t.Fatalf("md: expected ErrBoreholeNotFound, got %v", err)
	}
}

func TestConversions_NoReferenceElevation(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubGuard{allow: true}, nil)
	if v, err := svc.MASL(context.Background(), "bh-1", 10); err != nil || v != nil {
		t.Fatalf("expected no value, got %v (%v)", v, err)
	}
	if v, err := svc.MDFromMASL(context.Background(), "bh-1", 10); err != nil || v != nil {
		t.Fatalf("expected no value, got %v (%v)", v, err)
	}
}

func TestListFormats(t *testing.T) {
	svc, _, _, _ := newTestService(t, &stubGuard{allow: true}, nil)
	got := svc.ListFormats()
	if len(got) != 3 || got[0] != geometry.FormatXYZ || got[1] != geometry.FormatAzInc || got[2] != geometry.FormatPitchRoll {
		t.Fatalf("unexpected formats %v", got)
	}
}
