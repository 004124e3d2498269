package geometry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEmptyBoreholeID is returned when a borehole id is empty.
	ErrEmptyBoreholeID = errors.New("geometry: empty borehole id")
	// ErrInvalidFormat is returned for a format name outside the supported set.
	ErrInvalidFormat = errors.New("geometry: invalid geometry format")
	// ErrMutationDenied is returned when the caller may not modify the borehole.
	ErrMutationDenied = errors.New("geometry: borehole mutation not permitted")
	// ErrBoreholeNotFound is returned when the owning borehole does not exist.
	ErrBoreholeNotFound = errors.New("geometry: borehole not found")
	// ErrInvalidDepth is returned for a non-finite depth or elevation query.
	ErrInvalidDepth = errors.New("geometry: invalid depth value")
)

// ValidationError reports everything wrong with an uploaded survey file.
// Header problems stop processing; row problems are collected per data row (1-based).
type ValidationError struct {
	Header []string
	Rows   map[int][]string
}

// AddHeader records a header-level problem.
func (e *ValidationError) AddHeader(msg string) {
	e.Header = append(e.Header, msg)
}

// AddRow records a problem for a data row.
func (e *ValidationError) AddRow(row int, msg string) {
	if e.Rows == nil {
		e.Rows = make(map[int][]string)
	}
	e.Rows[row] = append(e.Rows[row], msg)
}

// Merge appends other's header and row problems.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Header = append(e.Header, other.Header...)
	for _, row := range other.RowNumbers() {
		for _, msg := range other.Rows[row] {
			e.AddRow(row, msg)
		}
	}
}

// Empty reports whether no problem was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || (len(e.Header) == 0 && len(e.Rows) == 0)
}

// RowNumbers returns the affected rows in ascending order.
func (e *ValidationError) RowNumbers() []int {
	rows := make([]int, 0, len(e.Rows))
	for row := range e.Rows {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return "geometry: validation failed"
	}
	var parts []string
	parts = append(parts, e.Header...)
	for _, row := range e.RowNumbers() {
		for _, msg := range e.Rows[row] {
			parts = append(parts, fmt.Sprintf("row %d: %s", row, msg))
		}
	}
	return "geometry: validation failed: " + strings.Join(parts, "; ")
}
