package storage

import (
	"database/sql"
	"time"
)

// MaxEdgeQueryLimit caps edge query page sizes regardless of what the
// caller asks for.
const MaxEdgeQueryLimit = 500

// BumpEdge atomically adds delta to the edge's weight, creating the edge
// with weight=delta if absent. The accumulation happens in a single upsert
// statement so concurrent bumps to the same edge never overwrite each other.
func (s *Store) BumpEdge(srcType, srcID, dstType, dstID, reason string, delta float64) error {
	_, err := s.db.Exec(`
		INSERT INTO relevancy_edges (src_type, src_id, dst_type, dst_id, reason, weight, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(src_type, src_id, dst_type, dst_id, reason)
		DO UPDATE SET weight = weight + excluded.weight, updated_at = excluded.updated_at`,
		srcType, srcID, dstType, dstID, reason, delta, formatTime(time.Now()),
	)
	return err
}

// GetEdgeWeight returns the stored weight for one edge tuple, 0 if the edge
// does not exist.
func (s *Store) GetEdgeWeight(srcType, srcID, dstType, dstID, reason string) (float64, error) {
	var w float64
	err := s.db.QueryRow(`
		SELECT weight FROM relevancy_edges
		WHERE src_type = ? AND src_id = ? AND dst_type = ? AND dst_id = ? AND reason = ?`,
		srcType, srcID, dstType, dstID, reason,
	).Scan(&w)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return w, nil
}

// EdgeWeights returns the weight of every (srcType, srcID, reason) edge as a
// map keyed by destination id. Used by ranking to look up boosts in bulk.
func (s *Store) EdgeWeights(srcType, srcID, dstType, reason string) (map[string]float64, error) {
	rows, err := s.db.Query(`
		SELECT dst_id, weight FROM relevancy_edges
		WHERE src_type = ? AND src_id = ? AND dst_type = ? AND reason = ?`,
		srcType, srcID, dstType, reason,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weights := make(map[string]float64)
	for rows.Next() {
		var dstID string
		var w float64
		if err := rows.Scan(&dstID, &w); err != nil {
			return nil, err
		}
		weights[dstID] = w
	}
	return weights, rows.Err()
}

// QueryEdges returns edges matching the filter, newest first. Limit is
// clamped to MaxEdgeQueryLimit; non-positive limits get a default page.
func (s *Store) QueryEdges(f EdgeFilter, limit int) ([]Edge, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > MaxEdgeQueryLimit {
		limit = MaxEdgeQueryLimit
	}

	query := `SELECT src_type, src_id, dst_type, dst_id, reason, weight, updated_at
		FROM relevancy_edges WHERE 1=1`
	var args []any
	if f.SrcType != "" {
		query += ` AND src_type = ?`
		args = append(args, f.SrcType)
	}
	if f.SrcID != "" {
		query += ` AND src_id = ?`
		args = append(args, f.SrcID)
	}
	if f.DstType != "" {
		query += ` AND dst_type = ?`
		args = append(args, f.DstType)
	}
	if f.DstID != "" {
		query += ` AND dst_id = ?`
		args = append(args, f.DstID)
	}
	if f.Reason != "" {
		query += ` AND reason = ?`
		args = append(args, f.Reason)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var updatedAt string
		if err := rows.Scan(&e.SrcType, &e.SrcID, &e.DstType, &e.DstID, &e.Reason, &e.Weight, &updatedAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
