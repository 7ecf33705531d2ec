// Package taggable holds the tag-association logic shared by tasks, notes,
// and posts.
package taggable

import (
	"strings"

	"gorm.io/gorm"

	"github.com/flowapp/flow-server/pkg/flow/models"
)

// ResolveTags returns the subset of tagIDs that exist and belong to userID,
// in a single batched query. Unknown ids and tags owned by other users are
// dropped silently; callers attach whatever survives.
func ResolveTags(db *gorm.DB, userID string, tagIDs []string) ([]models.Tag, error) {
	if len(tagIDs) == 0 {
		return []models.Tag{}, nil
	}
	var tags []models.Tag
	if err := db.Where("user_id = ? AND id IN ?", userID, tagIDs).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// EscapeLike escapes LIKE wildcards in a user-supplied search term so that
// %, _ and \ match literally. Use with `LIKE ? ESCAPE '\'`.
func EscapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return term
}

// SearchPattern builds a case-insensitive substring LIKE pattern from a raw
// search term. Pair with LOWER(column) on the query side.
func SearchPattern(term string) string {
	return "%" + strings.ToLower(EscapeLike(term)) + "%"
}
