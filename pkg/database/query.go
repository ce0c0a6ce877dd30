package database

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a user search term into a "contains" pattern for
// LIKE/ILIKE, escaping the wildcard characters it may carry.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
