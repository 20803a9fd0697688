package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"SandwichAgent/internal/domain"
	"SandwichAgent/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresCorpus persists accepted sandwiches and serves the corpus snapshot
// feeding the selector.
type PostgresCorpus struct {
	db *sql.DB
}

var _ ports.CorpusStore = (*PostgresCorpus)(nil)

// NewPostgresCorpus wires a sql.DB implementation.
func NewPostgresCorpus(db *sql.DB) *PostgresCorpus {
	return &PostgresCorpus{db: db}
}

// Embeddings returns every stored sandwich embedding.
func (r *PostgresCorpus) Embeddings(ctx context.Context) ([][]float32, error) {
	if r.db == nil {
		return nil, nil
	}

	query, args, err := psql.
		Select("embedding").
		From("sandwiches").
		Where(sq.NotEq{"embedding": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build embeddings query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		embeddings = append(embeddings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return embeddings, nil
}

// TypeFrequencies returns each structure type's share of the corpus, as a
// ratio in [0,1]. An empty corpus yields an empty map.
func (r *PostgresCorpus) TypeFrequencies(ctx context.Context) (map[string]float64, error) {
	if r.db == nil {
		return map[string]float64{}, nil
	}

	query, args, err := psql.
		Select("structure_type", "COUNT(*)").
		From("sandwiches").
		GroupBy("structure_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build frequency query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query type counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	total := 0
	for rows.Next() {
		var structureType string
		var count int
		if err := rows.Scan(&structureType, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[structureType] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	frequencies := make(map[string]float64, len(counts))
	for structureType, count := range counts {
		frequencies[structureType] = float64(count) / float64(total)
	}

	return frequencies, nil
}

// SaveSandwich inserts the stored artifact with its validation outcome and
// embedding.
func (r *PostgresCorpus) SaveSandwich(ctx context.Context, sandwich domain.AssembledSandwich, report domain.ValidationReport, embedding []float32) error {
	if r.db == nil {
		return nil
	}

	builder := psql.
		Insert("sandwiches").
		Columns("id", "name", "bread_top", "bread_bottom", "filling", "structure_type", "description", "verdict", "score", "embedding")

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	builder = builder.Values(
		uuid.New(),
		sandwich.Name,
		sandwich.BreadTop,
		sandwich.BreadBottom,
		sandwich.Filling,
		sandwich.StructureType,
		sandwich.Description,
		string(report.Verdict),
		report.OverallScore,
		vec,
	)

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert sandwich: %w", err)
	}

	return nil
}
