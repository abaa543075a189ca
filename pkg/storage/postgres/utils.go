package postgres

import (
	"fmt"
	"strconv"
	"strings"
)

// buildWhereClause builds an owner + tier WHERE clause starting from $1.
func buildWhereClause(ownerID string, tiers []string) (string, []interface{}) {
	return buildWhereClauseWithOffset(ownerID, tiers, 1)
}

// buildWhereClauseWithOffset builds a WHERE clause starting from a specific
// parameter index, for queries that bind other parameters first.
func buildWhereClauseWithOffset(ownerID string, tiers []string, startIndex int) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := startIndex

	if ownerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, ownerID)
		argIndex++
	}

	if len(tiers) > 0 {
		placeholders := make([]string, len(tiers))
		for i, t := range tiers {
			placeholders[i] = "$" + strconv.Itoa(argIndex)
			args = append(args, t)
			argIndex++
		}
		conditions = append(conditions, "tier IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// vectorToString converts a vector to pgvector literal format: "[0.1,0.2,...]".
func vectorToString(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// stringToVector parses a pgvector literal back into a float slice.
func stringToVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		vec[i] = v
	}
	return vec, nil
}
