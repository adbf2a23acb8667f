package tools

import (
	"context"
	"strings"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
)

// OutletFilters narrows the outlet universe. Both fields are optional and
// independently combinable.
type OutletFilters struct {
	City    string
	Service string
}

// Empty reports whether no filter is set at all.
func (f OutletFilters) Empty() bool { return f.City == "" && f.Service == "" }

// OutletDirectory answers outlet queries over a fixed directory.
type OutletDirectory struct {
	outlets []catalog.Outlet
}

func NewOutletDirectory(outlets []catalog.Outlet) *OutletDirectory {
	return &OutletDirectory{outlets: outlets}
}

// Search applies filters sequentially: the city filter narrows the candidate
// set first, then the service filter narrows again within that result. The
// service filter is never re-applied to the unfiltered universe.
func (d *OutletDirectory) Search(ctx context.Context, filters OutletFilters) ([]catalog.Outlet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := d.outlets
	if filters.City != "" {
		candidates = filterByCity(candidates, filters.City)
	}
	if filters.Service != "" {
		candidates = filterByService(candidates, filters.Service)
	}
	// Copy so callers never alias the directory's backing array.
	out := make([]catalog.Outlet, len(candidates))
	copy(out, candidates)
	return out, nil
}

// Total returns the size of the unfiltered outlet universe.
func (d *OutletDirectory) Total() int { return len(d.outlets) }

func filterByCity(outlets []catalog.Outlet, city string) []catalog.Outlet {
	var out []catalog.Outlet
	for _, o := range outlets {
		if strings.EqualFold(o.City, city) {
			out = append(out, o)
		}
	}
	return out
}

func filterByService(outlets []catalog.Outlet, service string) []catalog.Outlet {
	var out []catalog.Outlet
	for _, o := range outlets {
		if o.HasService(service) {
			out = append(out, o)
		}
	}
	return out
}
