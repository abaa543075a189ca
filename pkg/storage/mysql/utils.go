package mysql

import "strings"

// buildWhereClause builds an owner + tier WHERE clause.
func buildWhereClause(ownerID string, tiers []string) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if ownerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, ownerID)
	}

	if len(tiers) > 0 {
		placeholders := make([]string, len(tiers))
		for i, t := range tiers {
			placeholders[i] = "?"
			args = append(args, t)
		}
		conditions = append(conditions, "tier IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}
