// Package tools implements the external capabilities the orchestrator
// dispatches to: product search, outlet search and the arithmetic
// evaluator. Each tool honours context cancellation and never fails for an
// unmatched query; "no results" is an empty slice, not an error.
package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/catalog"
)

const productResultLimit = 5

// ProductIndex answers product queries by token overlap against name,
// category, tags and description. Deterministic: equal scores order by name.
type ProductIndex struct {
	products []catalog.Product
}

func NewProductIndex(products []catalog.Product) *ProductIndex {
	return &ProductIndex{products: products}
}

// Search returns the best-matching products for query, at most
// productResultLimit of them. An unmatched query returns an empty slice.
func (p *ProductIndex) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		product catalog.Product
		score   int
	}
	var matches []scored
	for _, prod := range p.products {
		s := scoreProduct(prod, terms)
		if s > 0 {
			matches = append(matches, scored{product: prod, score: s})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].product.Name < matches[j].product.Name
	})
	if len(matches) > productResultLimit {
		matches = matches[:productResultLimit]
	}

	out := make([]catalog.Product, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.product)
	}
	return out, nil
}

func scoreProduct(p catalog.Product, terms []string) int {
	haystack := strings.ToLower(p.Name + " " + p.Category + " " + p.Description + " " + strings.Join(p.Tags, " "))
	score := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			score += 2
			continue
		}
		// Loose singular match so "tumblers" still finds "tumbler".
		if trimmed := strings.TrimSuffix(term, "s"); trimmed != term && strings.Contains(haystack, trimmed) {
			score++
		}
	}
	return score
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
